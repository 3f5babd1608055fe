package domain

import "errors"

// Sentinel errors used across all layers.
var (
	// ErrInvalidInput is returned when content to save is not text.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorageCorrupt marks persisted data that cannot be decoded.
	ErrStorageCorrupt = errors.New("storage corrupt")
	// ErrPersistence marks a failed write to durable storage.
	ErrPersistence = errors.New("persistence failure")
	ErrNotFound    = errors.New("not found")
)
