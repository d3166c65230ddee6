package products

import "time"

// Product is the masterdata record referenced by inventory rows. OwnerID is
// the seller account that controls the product's stock.
type Product struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
