package domain

import (
	"time"
)

// Product represents a product in the catalog
type Product struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"`
	Quantity    int       `json:"quantity" db:"quantity"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	MinPrice    *float64  `json:"min_price,omitempty" db:"min_price"`
	MaxPrice    *float64  `json:"max_price,omitempty" db:"max_price"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// HasRecommendedRange reports whether both bounds of the recommended price range are known
func (p Product) HasRecommendedRange() bool {
	return p.MinPrice != nil && p.MaxPrice != nil
}

// ProductUpdate carries a partial product update. Nil fields are left unchanged.
type ProductUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Quantity    *int     `json:"quantity,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
	MinPrice    *float64 `json:"min_price,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
}

// Apply copies every non-nil field of u onto p
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Quantity != nil {
		p.Quantity = *u.Quantity
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	if u.MinPrice != nil {
		p.MinPrice = u.MinPrice
	}
	if u.MaxPrice != nil {
		p.MaxPrice = u.MaxPrice
	}
}
