package tenantctx

import (
	"context"
	"errors"
	"fmt"

	"github.com/clearvault/clearvault/internal/common/config"
	"go.uber.org/zap"
)

// ErrNoSelection is returned when a session has no stored tenant selection
var ErrNoSelection = errors.New("no tenant selected")

// SelectionStore persists the per-session active-tenant choice. It is the
// request-scoped replacement for a tenant cookie.
type SelectionStore interface {
	// Get returns the selected tenant ID, or ErrNoSelection when absent.
	Get(ctx context.Context, sessionID string) (uint, error)
	// Set stores the tenant selection for a session.
	Set(ctx context.Context, sessionID string, tenantID uint) error
	// Clear removes the selection. Clearing an absent selection is not an error.
	Clear(ctx context.Context, sessionID string) error
	// Close releases store resources.
	Close() error
}

// NewSelectionStore creates a selection store based on configuration
func NewSelectionStore(logger *zap.Logger, cfg *config.SessionConfig) (SelectionStore, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(logger, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}
}
