package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateKey       = errors.New("key already exists")
	ErrInvalidConversion  = errors.New("stored value cannot be converted to the requested type")
	ErrSerialization      = errors.New("value cannot be serialized")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateMigration = errors.New("migration already registered")
)
