package model

import "time"

// Warehouse is a site that holds boxes.
type Warehouse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	BoxCount int `json:"box_count"`
}

// Box is a container inside a warehouse. Items live in boxes.
type Box struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	WarehouseID int64     `json:"warehouse_id"`
	QRCodeURL   string    `json:"qr_code_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	WarehouseName string `json:"warehouse_name,omitempty"`
	ItemCount     int    `json:"item_count"`
}

// Category groups items.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ItemCount int `json:"item_count"`
}

// Movement records a box moving between warehouses.
type Movement struct {
	ID              int64     `json:"id"`
	BoxID           int64     `json:"box_id"`
	FromWarehouseID int64     `json:"from_warehouse_id"`
	ToWarehouseID   int64     `json:"to_warehouse_id"`
	MovedAt         time.Time `json:"moved_at"`
	MovedBy         *int64    `json:"moved_by,omitempty"`

	// Joined fields (not always populated).
	BoxName           string `json:"box_name,omitempty"`
	FromWarehouseName string `json:"from_warehouse_name,omitempty"`
	ToWarehouseName   string `json:"to_warehouse_name,omitempty"`
	MovedByName       string `json:"moved_by_name,omitempty"`
}
