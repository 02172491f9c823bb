package domain

import "errors"

var (
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidTitle     = errors.New("invalid title")
	ErrInvalidRevenue   = errors.New("invalid revenue")
	ErrInvalidTimeTaken = errors.New("invalid time taken")
)
