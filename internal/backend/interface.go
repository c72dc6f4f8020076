package backend

import (
	"context"

	"boletim/internal/provider"
)

// Backend is the Data Provider surface served over HTTP.
type Backend interface {
	provider.RecordReader
	provider.FooterReader
	provider.AttendanceWriter
}

// Pinger reports whether the backend's storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	// Ready is nil for backends without external storage.
	Ready   Pinger
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
