package session

import "errors"

// Common errors for snapshot store operations.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrVersionConflict  = errors.New("session version conflict")
	ErrNotFound         = errors.New("session not found")
	ErrCorruptSnapshot  = errors.New("corrupt session snapshot")
)
