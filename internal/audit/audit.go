package audit

import (
	"context"
	"sync"
	"time"

	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultQueueSize = 1024

// Event is one security-relevant access decision
type Event struct {
	TenantID uint
	UserID   uint
	Action   string
	Resource string
	Allowed  bool
	Reason   string
	ClientIP string
}

// Recorder persists access decisions asynchronously. Recording never blocks
// and never fails the primary decision: when the queue is full the event is
// dropped and the drop is reported to the log only.
type Recorder struct {
	db     database.Database
	logger *zap.Logger
	queue  chan Event
	onDrop func()

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// OnDrop registers a callback invoked whenever an event is dropped because
// the queue is full. Set it before the recorder receives traffic.
func (r *Recorder) OnDrop(fn func()) {
	r.onDrop = fn
}

// NewRecorder creates and starts an audit recorder
func NewRecorder(db database.Database, logger *zap.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	r := &Recorder{
		db:     db,
		logger: logger.Named("audit"),
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Record enqueues an event without blocking. Events arriving after Close are
// dropped; a request racing shutdown must not crash the process.
func (r *Recorder) Record(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(ev, "recorder closed")
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.drop(ev, "audit queue full")
	}
}

func (r *Recorder) drop(ev Event, cause string) {
	if r.onDrop != nil {
		r.onDrop()
	}
	r.logger.Warn("dropping audit event",
		zap.String("cause", cause),
		zap.String("action", ev.Action),
		zap.String("resource", ev.Resource))
}

func (r *Recorder) loop() {
	defer close(r.done)
	for ev := range r.queue {
		entry := &database.AuditLog{
			ID:        uuid.NewString(),
			TenantID:  ev.TenantID,
			UserID:    ev.UserID,
			Action:    ev.Action,
			Resource:  ev.Resource,
			Allowed:   ev.Allowed,
			Reason:    ev.Reason,
			ClientIP:  ev.ClientIP,
			CreatedAt: time.Now(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.db.SaveAuditLog(ctx, entry); err != nil {
			r.logger.Warn("failed to persist audit event",
				zap.String("action", ev.Action),
				zap.String("resource", ev.Resource),
				zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events and waits for the queue to drain
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.queue)
		<-r.done
	})
}
