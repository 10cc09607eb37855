package models

import "time"

// CounterState persists the single cross-shop item counter, separately from
// the cart map. Exactly one row (ID = 1) exists once the counter has been
// written; a missing row means "unknown, recompute".
type CounterState struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ItemCount int64     `gorm:"not null;default:0" json:"item_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CounterStateID is the fixed primary key of the singleton counter row.
const CounterStateID int64 = 1

// TableName pins the table used by goose migrations.
func (CounterState) TableName() string {
	return "counter_state"
}
