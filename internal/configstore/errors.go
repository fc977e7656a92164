// Where: internal/configstore/errors.go
// What: Sentinel errors for config store misuse and bad input.
// Why: Let callers match failures with errors.Is.
package configstore

import "errors"

var (
	ErrNotLocked       = errors.New("configuration is not locked")
	ErrAlreadyLocked   = errors.New("configuration is already locked")
	ErrInvalidDocument = errors.New("invalid configuration document")
)
