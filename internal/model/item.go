package model

import (
	"strings"
	"time"
)

// ItemType decides how an item's quantity reacts to loans and returns.
type ItemType string

// Item types.
const (
	// ItemUnique is a single indivisible unit; quantity is 1 when on the
	// shelf and 0 while on loan.
	ItemUnique ItemType = "UNIQUE"
	// ItemCountable stock comes back on return.
	ItemCountable ItemType = "COUNTABLE"
	// ItemConsumable stock is used up by a loan.
	ItemConsumable ItemType = "CONSUMABLE"
)

// ParseItemType parses an item type name, ignoring case.
func ParseItemType(s string) (ItemType, bool) {
	t := ItemType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case ItemUnique, ItemCountable, ItemConsumable:
		return true
	}
	return false
}

// Item is a trackable piece of inventory.
type Item struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Quantity    int        `json:"quantity"`
	Type        ItemType   `json:"type"`
	CategoryID  *int64     `json:"category_id,omitempty"`
	BoxID       *int64     `json:"box_id,omitempty"`
	QRCodeURL   string     `json:"qr_code_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`

	// Joined fields (not always populated).
	CategoryName  string `json:"category_name,omitempty"`
	BoxName       string `json:"box_name,omitempty"`
	WarehouseID   *int64 `json:"warehouse_id,omitempty"`
	WarehouseName string `json:"warehouse_name,omitempty"`
}
