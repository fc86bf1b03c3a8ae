package apiclient

import (
	"encoding/json"
	"fmt"
	"time"

	"pricebot/internal/domain"
)

// productDTO is the backend's product representation; ids are integers
type productDTO struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Quantity    int         `json:"quantity"`
	Price       float64     `json:"price"`
	IsActive    bool        `json:"is_active"`
	ImageURL    string      `json:"image_url"`
	MinPrice    *float64    `json:"min_price,omitempty"`
	MaxPrice    *float64    `json:"max_price,omitempty"`
	CreatedAt   backendTime `json:"created_at"`
	UpdatedAt   backendTime `json:"updated_at"`
}

func (p productDTO) toDomain() domain.Product {
	return domain.Product{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		ImageURL:    p.ImageURL,
		IsActive:    p.IsActive,
		MinPrice:    p.MinPrice,
		MaxPrice:    p.MaxPrice,
		CreatedAt:   time.Time(p.CreatedAt),
		UpdatedAt:   time.Time(p.UpdatedAt),
	}
}

type createProductDTO struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	IsActive    bool    `json:"is_active"`
	ImageURL    string  `json:"image_url"`
}

// backendTime accepts RFC 3339 timestamps as well as the zone-less form the
// backend emits for naive datetimes, which are taken as UTC
type backendTime time.Time

var backendTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"}

func (t *backendTime) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || *raw == "" {
		*t = backendTime{}
		return nil
	}
	for _, layout := range backendTimeLayouts {
		if parsed, err := time.Parse(layout, *raw); err == nil {
			*t = backendTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", *raw)
}
