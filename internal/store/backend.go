package store

import (
	"context"

	"github.com/pbaille/audit/internal/domain"
)

// BuildFunc returns the record to append given the newest stored record,
// or nil when the log is empty.
type BuildFunc func(last *domain.Version) domain.Version

// Backend persists the version log.
//
// Store serializes Load and Append within one process. Append must also
// exclude writers in other processes that share the same storage, so the
// record it reads as last is still last when the new one is committed.
type Backend interface {
	// Load returns the whole log, oldest first. Missing or empty storage
	// yields an empty log. Undecodable data yields domain.ErrStorageCorrupt.
	Load(ctx context.Context) ([]domain.Version, error)
	// Append reads the newest record, builds the next one with build and
	// commits it, all under one exclusive lock. It returns the committed
	// record and the resulting log size. Either the record is committed or
	// the stored log is left unchanged.
	Append(ctx context.Context, build BuildFunc) (domain.Version, int, error)
	// Ping checks that the storage is reachable. Safe for concurrent use.
	Ping(ctx context.Context) error
	Close() error
	// Name identifies the backend in logs.
	Name() string
}
