package domain

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrVersionConflict    = errors.New("version conflict")
	ErrExpired            = errors.New("command expired")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrQueueUnavailable   = errors.New("queue unavailable")
)
