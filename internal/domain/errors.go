package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInsufficientCapacity = errors.New("van capacity is below passenger count")
	ErrInvalidPlan          = errors.New("invalid plan")
	ErrInvalidInput         = errors.New("invalid input")
)
