package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNotInitialized = errors.New("engine not initialized")
	ErrUnknownMode    = errors.New("unknown inference mode")
	ErrNoRules        = errors.New("no rules loaded")
	ErrNoGoal         = errors.New("no goal supplied")
)
