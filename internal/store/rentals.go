package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shibalab/souko/internal/errs"
	"github.com/shibalab/souko/internal/model"
)

const rentalSelect = `SELECT r.id, r.item_id, r.user_id, r.quantity, r.rented_at, r.due_date, r.returned_at,
        i.name, i.description, i.image_url, i.quantity, i.type, i.qr_code_url, i.box_id, i.category_id,
        c.name, b.name, b.warehouse_id, w.name,
        u.name, u.email
 FROM rentals r
 JOIN items i ON i.id = r.item_id
 JOIN users u ON u.id = r.user_id
 LEFT JOIN categories c ON c.id = i.category_id
 LEFT JOIN boxes b ON b.id = i.box_id
 LEFT JOIN warehouses w ON w.id = b.warehouse_id`

func scanRental(row interface{ Scan(...any) error }) (*model.Rental, error) {
	r := &model.Rental{Item: &model.Item{}, User: &model.UserSummary{}}
	var description, imageURL, qr, categoryName, boxName, warehouseName sql.NullString
	if err := row.Scan(&r.ID, &r.ItemID, &r.UserID, &r.Quantity, &r.RentedAt, &r.DueDate, &r.ReturnedAt,
		&r.Item.Name, &description, &imageURL, &r.Item.Quantity, &r.Item.Type, &qr, &r.Item.BoxID, &r.Item.CategoryID,
		&categoryName, &boxName, &r.Item.WarehouseID, &warehouseName,
		&r.User.Name, &r.User.Email); err != nil {
		return nil, err
	}
	r.Item.ID = r.ItemID
	r.Item.Description = description.String
	r.Item.ImageURL = imageURL.String
	r.Item.QRCodeURL = qr.String
	r.Item.CategoryName = categoryName.String
	r.Item.BoxName = boxName.String
	r.Item.WarehouseName = warehouseName.String
	r.User.ID = r.UserID
	return r, nil
}

func queryRentals(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.Rental, error) {
	rows, err := conn(ctx, db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing rentals: %w", err)
	}
	defer rows.Close()

	var rentals []model.Rental
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rental: %w", err)
		}
		rentals = append(rentals, *r)
	}
	return rentals, rows.Err()
}

// CreateRental inserts a rental and returns its ID.
func CreateRental(ctx context.Context, db *sql.DB, r *model.Rental) (int64, error) {
	result, err := conn(ctx, db).ExecContext(ctx,
		`INSERT INTO rentals (item_id, user_id, quantity, rented_at, due_date) VALUES (?, ?, ?, ?, ?)`,
		r.ItemID, r.UserID, r.Quantity, r.RentedAt.UTC(), r.DueDate.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("creating rental: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting rental id: %w", err)
	}
	return id, nil
}

// GetRental returns a rental with its item and borrower attached.
func GetRental(ctx context.Context, db *sql.DB, id int64) (*model.Rental, error) {
	r, err := scanRental(conn(ctx, db).QueryRowContext(ctx, rentalSelect+` WHERE r.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting rental: %w", err)
	}
	return r, nil
}

// CloseRental marks an active rental as returned. A rental that is already
// closed is left untouched and reported as a conflict.
func CloseRental(ctx context.Context, db *sql.DB, id int64, at time.Time) error {
	result, err := conn(ctx, db).ExecContext(ctx,
		`UPDATE rentals SET returned_at = ? WHERE id = ? AND returned_at IS NULL`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("closing rental: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("closing rental: %w", err)
	}
	if n == 0 {
		return errs.New(errs.Conflict, "rental has already been returned")
	}
	return nil
}

// ListRentals returns rentals newest first. limit <= 0 means no limit.
func ListRentals(ctx context.Context, db *sql.DB, limit int) ([]model.Rental, error) {
	query := rentalSelect + ` ORDER BY r.rented_at DESC, r.id DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	return queryRentals(ctx, db, query)
}

// ListActiveRentals returns all unreturned rentals, earliest due first.
func ListActiveRentals(ctx context.Context, db *sql.DB) ([]model.Rental, error) {
	return queryRentals(ctx, db,
		rentalSelect+` WHERE r.returned_at IS NULL ORDER BY r.due_date, r.id`)
}

// ListActiveRentalsByUser returns a user's unreturned rentals, earliest due first.
func ListActiveRentalsByUser(ctx context.Context, db *sql.DB, userID int64) ([]model.Rental, error) {
	return queryRentals(ctx, db,
		rentalSelect+` WHERE r.user_id = ? AND r.returned_at IS NULL ORDER BY r.due_date, r.id`, userID)
}

// ListActiveRentalsByItem returns an item's unreturned rentals, earliest due first.
func ListActiveRentalsByItem(ctx context.Context, db *sql.DB, itemID int64) ([]model.Rental, error) {
	return queryRentals(ctx, db,
		rentalSelect+` WHERE r.item_id = ? AND r.returned_at IS NULL ORDER BY r.due_date, r.id`, itemID)
}

// CountActiveRentals returns the number of unreturned rentals of an item.
func CountActiveRentals(ctx context.Context, db *sql.DB, itemID int64) (int, error) {
	var n int
	err := conn(ctx, db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rentals WHERE item_id = ? AND returned_at IS NULL`, itemID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active rentals: %w", err)
	}
	return n, nil
}

// RentalStore adapts the package functions to the rental manager's
// persistence interface.
type RentalStore struct {
	DB *sql.DB
}

func (s *RentalStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, s.DB, fn)
}

func (s *RentalStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	return GetItem(ctx, s.DB, id)
}

func (s *RentalStore) SetItemQuantity(ctx context.Context, id int64, quantity int) error {
	return SetItemQuantity(ctx, s.DB, id, quantity)
}

func (s *RentalStore) CountActiveRentals(ctx context.Context, itemID int64) (int, error) {
	return CountActiveRentals(ctx, s.DB, itemID)
}

func (s *RentalStore) CreateRental(ctx context.Context, r *model.Rental) (int64, error) {
	return CreateRental(ctx, s.DB, r)
}

func (s *RentalStore) GetRental(ctx context.Context, id int64) (*model.Rental, error) {
	return GetRental(ctx, s.DB, id)
}

func (s *RentalStore) CloseRental(ctx context.Context, id int64, at time.Time) error {
	return CloseRental(ctx, s.DB, id, at)
}
