package core

import "errors"

// Predefined errors for the storage layer. Routine "entry not found"
// conditions are reported as (false, nil) results, not errors; these
// sentinels cover the cases a caller must be able to test for.
var (
	// ErrUnknownMemory indicates the requested memory instance is absent
	// from the registry, disabled, or has no configured directory.
	ErrUnknownMemory = errors.New("unknown or disabled memory instance")

	// ErrEmptyContent indicates an add/update with blank content.
	ErrEmptyContent = errors.New("memory content must not be empty")

	// ErrImportanceRange indicates an importance outside [0.0, 1.0].
	ErrImportanceRange = errors.New("importance must be between 0.0 and 1.0")

	// ErrInvalidItemType indicates an unrecognized trash item type.
	ErrInvalidItemType = errors.New("invalid trash item type")

	// ErrRestoreConflict indicates a restore target already exists.
	ErrRestoreConflict = errors.New("restore target already exists")
)
