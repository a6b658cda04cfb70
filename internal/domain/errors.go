package domain

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrLookupTimeout  = errors.New("lookup timed out")
	ErrLookupFailure  = errors.New("lookup failed")
	ErrOrdering       = errors.New("custody event out of order")
	ErrRender         = errors.New("document render failed")
	ErrKeyUnknown     = errors.New("key unknown")
	ErrAlreadyRevoked = errors.New("certificate already revoked")
	ErrAlreadyExists  = errors.New("certificate already exists")
	ErrUnauthorized   = errors.New("unauthorized")
)
