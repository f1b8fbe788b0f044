package service

import "errors"

var (
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput     = errors.New("invalid input")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInUse    = errors.New("category still has tasks")
)
