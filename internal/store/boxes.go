package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shibalab/souko/internal/errs"
	"github.com/shibalab/souko/internal/model"
)

const boxSelect = `SELECT b.id, b.name, b.description, b.warehouse_id, b.qr_code_url,
        b.created_at, b.updated_at, w.name AS warehouse_name,
        (SELECT COUNT(*) FROM items i WHERE i.box_id = b.id AND i.deleted_at IS NULL) AS item_count
 FROM boxes b
 JOIN warehouses w ON w.id = b.warehouse_id`

func scanBox(row interface{ Scan(...any) error }) (*model.Box, error) {
	b := &model.Box{}
	var description, qr sql.NullString
	if err := row.Scan(&b.ID, &b.Name, &description, &b.WarehouseID, &qr,
		&b.CreatedAt, &b.UpdatedAt, &b.WarehouseName, &b.ItemCount); err != nil {
		return nil, err
	}
	b.Description = description.String
	b.QRCodeURL = qr.String
	return b, nil
}

// CreateBox creates a box in a warehouse. Box names are unique per warehouse.
func CreateBox(ctx context.Context, db *sql.DB, name, description string, warehouseID int64) (*model.Box, error) {
	result, err := conn(ctx, db).ExecContext(ctx,
		`INSERT INTO boxes (name, description, warehouse_id) VALUES (?, ?, ?)`,
		name, description, warehouseID,
	)
	if IsUniqueViolation(err) {
		return nil, errs.New(errs.Conflict, "box %q already exists in this warehouse", name)
	}
	if IsForeignKeyViolation(err) {
		return nil, errs.New(errs.NotFound, "warehouse not found")
	}
	if err != nil {
		return nil, fmt.Errorf("creating box: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting box id: %w", err)
	}

	return GetBox(ctx, db, id)
}

// GetBox returns a box by ID.
func GetBox(ctx context.Context, db *sql.DB, id int64) (*model.Box, error) {
	b, err := scanBox(conn(ctx, db).QueryRowContext(ctx, boxSelect+` WHERE b.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting box: %w", err)
	}
	return b, nil
}

// ListBoxes returns boxes, optionally only those in one warehouse.
func ListBoxes(ctx context.Context, db *sql.DB, warehouseID int64) ([]model.Box, error) {
	query := boxSelect
	var args []any
	if warehouseID > 0 {
		query += ` WHERE b.warehouse_id = ?`
		args = append(args, warehouseID)
	}
	query += ` ORDER BY w.name COLLATE NOCASE, b.name COLLATE NOCASE`

	rows, err := conn(ctx, db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing boxes: %w", err)
	}
	defer rows.Close()

	var boxes []model.Box
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning box: %w", err)
		}
		boxes = append(boxes, *b)
	}
	return boxes, rows.Err()
}

// UpdateBox updates a box's name and description. Moving a box between
// warehouses goes through MoveBox so that it is recorded.
func UpdateBox(ctx context.Context, db *sql.DB, id int64, name, description string) error {
	_, err := conn(ctx, db).ExecContext(ctx,
		`UPDATE boxes SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, description, id,
	)
	if IsUniqueViolation(err) {
		return errs.New(errs.Conflict, "box %q already exists in this warehouse", name)
	}
	if err != nil {
		return fmt.Errorf("updating box: %w", err)
	}
	return nil
}

// SetBoxQRCode stores the QR reference printed on a box.
func SetBoxQRCode(ctx context.Context, db *sql.DB, id int64, url string) error {
	_, err := conn(ctx, db).ExecContext(ctx, `UPDATE boxes SET qr_code_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return fmt.Errorf("setting box qr code: %w", err)
	}
	return nil
}

// DeleteBox deletes a box. Fails while items or movements reference it.
func DeleteBox(ctx context.Context, db *sql.DB, id int64) error {
	return WithTx(ctx, db, func(ctx context.Context) error {
		q := conn(ctx, db)

		var items, moves int
		err := q.QueryRowContext(ctx,
			`SELECT (SELECT COUNT(*) FROM items WHERE box_id = ?),
			        (SELECT COUNT(*) FROM movements WHERE box_id = ?)`,
			id, id,
		).Scan(&items, &moves)
		if err != nil {
			return fmt.Errorf("checking box references: %w", err)
		}
		if items > 0 {
			return errs.New(errs.Conflict, "box still holds %d items", items)
		}
		if moves > 0 {
			return errs.New(errs.Conflict, "box is referenced by %d movements", moves)
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM boxes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting box: %w", err)
		}
		return nil
	})
}

// MoveBox moves a box to another warehouse and records the movement, in a
// single transaction.
func MoveBox(ctx context.Context, db *sql.DB, boxID, toWarehouseID int64, movedBy *int64, at time.Time) (*model.Movement, error) {
	var movementID int64
	err := WithTx(ctx, db, func(ctx context.Context) error {
		q := conn(ctx, db)

		var fromWarehouseID int64
		err := q.QueryRowContext(ctx,
			`SELECT warehouse_id FROM boxes WHERE id = ?`, boxID,
		).Scan(&fromWarehouseID)
		if err == sql.ErrNoRows {
			return errs.New(errs.NotFound, "box not found")
		}
		if err != nil {
			return fmt.Errorf("loading box: %w", err)
		}

		if fromWarehouseID == toWarehouseID {
			return errs.New(errs.InvalidInput, "box is already in that warehouse")
		}

		dest, err := GetWarehouse(ctx, db, toWarehouseID)
		if err != nil {
			return err
		}
		if dest == nil {
			return errs.New(errs.NotFound, "destination warehouse not found")
		}

		_, err = q.ExecContext(ctx,
			`UPDATE boxes SET warehouse_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			toWarehouseID, boxID,
		)
		if IsUniqueViolation(err) {
			return errs.New(errs.Conflict, "a box with the same name already exists in %s", dest.Name)
		}
		if err != nil {
			return fmt.Errorf("moving box: %w", err)
		}

		result, err := q.ExecContext(ctx,
			`INSERT INTO movements (box_id, from_warehouse_id, to_warehouse_id, moved_at, moved_by)
			 VALUES (?, ?, ?, ?, ?)`,
			boxID, fromWarehouseID, toWarehouseID, at.UTC(), movedBy,
		)
		if err != nil {
			return fmt.Errorf("recording movement: %w", err)
		}
		movementID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}

	return GetMovement(ctx, db, movementID)
}
