package backend

import (
	"context"

	"saldi/internal/events"
	"saldi/internal/services"
)

// Store is everything the application needs from persistence.
type Store interface {
	services.Store
	Ping(ctx context.Context) error
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store, the event publisher and a cleanup
// function releasing both.
type BackendResult struct {
	Store     Store
	Publisher events.Publisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
