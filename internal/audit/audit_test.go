package audit

import (
	"context"
	"testing"
	"time"

	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecorder_PersistsEvents(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, zap.NewNop(), 16)

	r.Record(Event{
		TenantID: 1,
		UserID:   2,
		Action:   "VIEW",
		Resource: "document:7",
		Allowed:  false,
		Reason:   "NoResourceGrant",
		ClientIP: "10.0.0.1",
	})
	r.Close()

	// Close drains the queue, so the entry is persisted by now.
	logs, err := db.ListAuditLogs(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.NotEmpty(t, logs[0].ID)
	assert.Equal(t, "document:7", logs[0].Resource)
	assert.Equal(t, "NoResourceGrant", logs[0].Reason)
	assert.False(t, logs[0].Allowed)
}

func TestRecorder_DropWhenFull(t *testing.T) {
	db := newTestDB(t)

	drops := 0
	r := NewRecorder(db, zap.NewNop(), 1)
	r.OnDrop(func() { drops++ })

	// Flood faster than the loop can drain; at least some must drop, and
	// Record must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			r.Record(Event{Action: "VIEW", Resource: "document:1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Record blocked")
	}
	r.Close()
}

func TestRecorder_RecordAfterCloseIsDropped(t *testing.T) {
	db := newTestDB(t)
	r := NewRecorder(db, zap.NewNop(), 4)

	drops := 0
	r.OnDrop(func() { drops++ })
	r.Close()

	// A request racing shutdown must not crash the process.
	r.Record(Event{TenantID: 1, Action: "VIEW", Resource: "document:1"})
	assert.Equal(t, 1, drops)

	logs, err := db.ListAuditLogs(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestRecorder_CloseIsIdempotent(t *testing.T) {
	r := NewRecorder(newTestDB(t), zap.NewNop(), 4)
	r.Close()
	r.Close()
}
