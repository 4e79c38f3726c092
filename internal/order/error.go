package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("order is no longer pending")
)
