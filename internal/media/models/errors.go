package models

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid arguments")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTooLarge        = errors.New("payload too large")
)
