package product

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductInUse    = errors.New("product is referenced by existing order items")
	ErrInvalidProduct  = errors.New("invalid product")
)
