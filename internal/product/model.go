package product

import "time"

// Product is a purchasable catalog entry. Prices are whole rupees.
type Product struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceINR    int       `json:"price_in_inr"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewProductInput carries the operator-supplied fields for a new product.
type NewProductInput struct {
	Name        string
	Description string
	PriceINR    int
	IsActive    bool
}
