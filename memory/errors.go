package memory

import "errors"

// Sentinel errors for entry store operations.
var (
	ErrEmptyContent = errors.New("memory content cannot be empty")
	ErrInvalidKind  = errors.New("invalid memory kind")
	ErrLoadFailed   = errors.New("load failed")
	ErrSaveFailed   = errors.New("save failed")
)
