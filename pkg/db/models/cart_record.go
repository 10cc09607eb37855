package models

import "time"

// CartRecord is one entry of the locally persisted shop-domain → cart-id
// mapping. One row per shop domain at most; absence means no cart has been
// created for that shop yet. Position preserves insertion order so the cart
// page renders shops stably across reloads.
type CartRecord struct {
	ShopDomain string    `gorm:"primaryKey;size:255" json:"shop_domain"`
	CartID     string    `gorm:"size:512;not null" json:"cart_id"`
	Position   int64     `gorm:"not null;index" json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName pins the table used by goose migrations.
func (CartRecord) TableName() string {
	return "cart_records"
}
