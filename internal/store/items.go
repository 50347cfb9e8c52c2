package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shibalab/souko/internal/errs"
	"github.com/shibalab/souko/internal/model"
)

// ItemParams are the editable attributes of an item.
type ItemParams struct {
	Name        string
	Description string
	Type        model.ItemType
	CategoryID  *int64
	BoxID       *int64
	ImageURL    string
}

// ItemFilter narrows ListItems.
type ItemFilter struct {
	// Query matches name, description, category name or box name, ignoring case.
	Query      string
	CategoryID int64
	BoxID      int64
}

const itemSelect = `SELECT i.id, i.name, i.description, i.image_url, i.quantity, i.type,
        i.category_id, i.box_id, i.qr_code_url, i.created_at, i.updated_at, i.deleted_at,
        c.name AS category_name, b.name AS box_name, b.warehouse_id, w.name AS warehouse_name
 FROM items i
 LEFT JOIN categories c ON c.id = i.category_id
 LEFT JOIN boxes b ON b.id = i.box_id
 LEFT JOIN warehouses w ON w.id = b.warehouse_id`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var description, imageURL, qr, categoryName, boxName, warehouseName sql.NullString
	if err := row.Scan(&item.ID, &item.Name, &description, &imageURL, &item.Quantity, &item.Type,
		&item.CategoryID, &item.BoxID, &qr, &item.CreatedAt, &item.UpdatedAt, &item.DeletedAt,
		&categoryName, &boxName, &item.WarehouseID, &warehouseName); err != nil {
		return nil, err
	}
	item.Description = description.String
	item.ImageURL = imageURL.String
	item.QRCodeURL = qr.String
	item.CategoryName = categoryName.String
	item.BoxName = boxName.String
	item.WarehouseName = warehouseName.String
	return item, nil
}

// CreateItem creates a new item with its starting stock.
func CreateItem(ctx context.Context, db *sql.DB, p ItemParams, quantity int) (*model.Item, error) {
	result, err := conn(ctx, db).ExecContext(ctx,
		`INSERT INTO items (name, description, image_url, quantity, type, category_id, box_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, nullString(p.Description), nullString(p.ImageURL), quantity, string(p.Type), p.CategoryID, p.BoxID,
	)
	if IsForeignKeyViolation(err) {
		return nil, errs.New(errs.NotFound, "category or box not found")
	}
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, including soft-deleted items.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item, err := scanItem(conn(ctx, db).QueryRowContext(ctx, itemSelect+` WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns non-deleted items, most recently updated first.
func ListItems(ctx context.Context, db *sql.DB, f ItemFilter) ([]model.Item, error) {
	query := itemSelect + ` WHERE i.deleted_at IS NULL`
	var args []any

	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + escapeLike(strings.ToLower(q)) + "%"
		query += ` AND (LOWER(i.name) LIKE ? ESCAPE '\'
		           OR LOWER(COALESCE(i.description, '')) LIKE ? ESCAPE '\'
		           OR LOWER(COALESCE(c.name, '')) LIKE ? ESCAPE '\'
		           OR LOWER(COALESCE(b.name, '')) LIKE ? ESCAPE '\')`
		args = append(args, like, like, like, like)
	}
	if f.CategoryID > 0 {
		query += ` AND i.category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.BoxID > 0 {
		query += ` AND i.box_id = ?`
		args = append(args, f.BoxID)
	}
	query += ` ORDER BY i.updated_at DESC, i.id DESC`

	rows, err := conn(ctx, db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CountItems returns the number of non-deleted items.
func CountItems(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := conn(ctx, db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE deleted_at IS NULL`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// UpdateItem updates an item's attributes. Quantity is not touched here.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, p ItemParams) error {
	_, err := conn(ctx, db).ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, image_url = ?, type = ?, category_id = ?, box_id = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		p.Name, nullString(p.Description), nullString(p.ImageURL), string(p.Type), p.CategoryID, p.BoxID, id,
	)
	if IsForeignKeyViolation(err) {
		return errs.New(errs.NotFound, "category or box not found")
	}
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// SetItemQuantity overwrites an item's stock count. Callers are expected to
// hold a transaction and to have applied the item type's quantity rules.
func SetItemQuantity(ctx context.Context, db *sql.DB, id int64, quantity int) error {
	result, err := conn(ctx, db).ExecContext(ctx,
		`UPDATE items SET quantity = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		quantity, id,
	)
	if err != nil {
		return fmt.Errorf("setting item quantity: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("setting item quantity: item %d does not exist", id)
	}
	return nil
}

// SetItemQRCode stores the QR reference printed on an item.
func SetItemQRCode(ctx context.Context, db *sql.DB, id int64, url string) error {
	_, err := conn(ctx, db).ExecContext(ctx, `UPDATE items SET qr_code_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return fmt.Errorf("setting item qr code: %w", err)
	}
	return nil
}

// DeleteItem soft-deletes an item and detaches it from its box and
// category. Fails while the item has active rentals.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	return WithTx(ctx, db, func(ctx context.Context) error {
		active, err := CountActiveRentals(ctx, db, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return errs.New(errs.Conflict, "item has %d active rentals", active)
		}

		_, err = conn(ctx, db).ExecContext(ctx,
			`UPDATE items SET deleted_at = CURRENT_TIMESTAMP, box_id = NULL, category_id = NULL
			 WHERE id = ? AND deleted_at IS NULL`,
			id,
		)
		if err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		return nil
	})
}

// SetItemImage stores an item's photo and points its image URL at it.
func SetItemImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime, url string) error {
	_, err := conn(ctx, db).ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, image_url = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, url, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's photo and its MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := conn(ctx, db).QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
