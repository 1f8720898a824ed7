// Package storage selects and opens an invocation store.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tjfontaine/callpipe/internal/config"
	"github.com/tjfontaine/callpipe/internal/core/domain"
	"github.com/tjfontaine/callpipe/internal/core/ports"
	"github.com/tjfontaine/callpipe/internal/storage/memory"
	"github.com/tjfontaine/callpipe/internal/storage/sqlite"
)

// Re-export storage interfaces and types from core/ports.
type (
	InvocationStore  = ports.InvocationStore
	ListOptions      = ports.ListOptions
	InvocationRecord = domain.InvocationRecord
)

// Open creates the store named by cfg. It returns nil, nil for type "none".
func Open(cfg config.StorageConfig) (InvocationStore, error) {
	switch cfg.Type {
	case config.StorageNone:
		return nil, nil
	case config.StorageMemory, "":
		return memory.New(), nil
	case config.StorageSQLite:
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage directory: %w", err)
			}
		}
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
