package domain

import "errors"

var (
	ErrClientNotFound  = errors.New("client not found")
	ErrDuplicateClient = errors.New("client already registered")
	ErrRelayStopped    = errors.New("relay stopped")
	ErrInvalidRole     = errors.New("invalid role")
)
