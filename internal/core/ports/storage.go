package ports

import (
	"context"
	"errors"

	"github.com/tjfontaine/callpipe/internal/core/domain"
)

// ErrNotFound is wrapped by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// ListOptions filters and bounds a listing.
type ListOptions struct {
	// Method restricts results to one method name when non-empty.
	Method string
	// Limit caps the number of records; zero means the store default.
	Limit int
}

// InvocationStore persists invocation records.
type InvocationStore interface {
	// SaveInvocation stores a record. IDs are unique.
	SaveInvocation(ctx context.Context, rec *domain.InvocationRecord) error

	// GetInvocation retrieves a record by ID.
	GetInvocation(ctx context.Context, id string) (*domain.InvocationRecord, error)

	// ListInvocations returns records newest first.
	ListInvocations(ctx context.Context, opts ListOptions) ([]*domain.InvocationRecord, error)

	// Close closes the storage connection
	Close() error
}

// DefaultListLimit applies when ListOptions.Limit is zero or negative.
const DefaultListLimit = 100
