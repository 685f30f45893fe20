package models

import "errors"

var (
	ErrNoUser         = errors.New("no authenticated user")
	ErrNoStats        = errors.New("no stats available")
	ErrUserMismatch   = errors.New("stats belong to a different user")
	ErrInvalidPayload = errors.New("invalid payload")
)
