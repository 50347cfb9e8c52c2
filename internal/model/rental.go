package model

import "time"

// Rental records a quantity of an item lent to a user.
type Rental struct {
	ID         int64      `json:"id"`
	ItemID     int64      `json:"item_id"`
	UserID     int64      `json:"user_id"`
	Quantity   int        `json:"quantity"`
	RentedAt   time.Time  `json:"rented_at"`
	DueDate    time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at"`

	Item *Item        `json:"item,omitempty"`
	User *UserSummary `json:"user,omitempty"`
}

// Active reports whether the rental has not been returned yet.
func (r Rental) Active() bool {
	return r.ReturnedAt == nil
}

// Overdue reports whether the rental is active and past its due date.
func (r Rental) Overdue(now time.Time) bool {
	return r.Active() && r.DueDate.Before(now)
}

// Notification kinds.
const (
	NotificationOverdue    = "overdue"
	NotificationLongRental = "long_rental"
)

// Notification is a reminder about one of the caller's active rentals.
type Notification struct {
	Type     string    `json:"type"`
	RentalID int64     `json:"rental_id"`
	ItemID   int64     `json:"item_id"`
	ItemName string    `json:"item_name"`
	RentedAt time.Time `json:"rented_at"`
	DueDate  time.Time `json:"due_date"`
	Message  string    `json:"message"`
}
