package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound          = errors.New("not found")
	ErrNotReady          = errors.New("store not ready")
	ErrDuplicateID       = errors.New("duplicate task id")
	ErrCorruptData       = errors.New("corrupt persisted data")
	ErrStorageRead       = errors.New("storage read failed")
	ErrStorageWrite      = errors.New("storage write failed")
	ErrInvalidExport     = errors.New("invalid export")
	ErrInvalidImportMode = errors.New("invalid import mode")
)
