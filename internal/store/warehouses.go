package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shibalab/souko/internal/errs"
	"github.com/shibalab/souko/internal/model"
)

const warehouseSelect = `SELECT w.id, w.name, w.description, w.created_at, w.updated_at,
        (SELECT COUNT(*) FROM boxes b WHERE b.warehouse_id = w.id) AS box_count
 FROM warehouses w`

func scanWarehouse(row interface{ Scan(...any) error }) (*model.Warehouse, error) {
	w := &model.Warehouse{}
	var description sql.NullString
	if err := row.Scan(&w.ID, &w.Name, &description, &w.CreatedAt, &w.UpdatedAt, &w.BoxCount); err != nil {
		return nil, err
	}
	w.Description = description.String
	return w, nil
}

// CreateWarehouse creates a warehouse. Names are unique ignoring case.
func CreateWarehouse(ctx context.Context, db *sql.DB, name, description string) (*model.Warehouse, error) {
	result, err := conn(ctx, db).ExecContext(ctx,
		`INSERT INTO warehouses (name, description) VALUES (?, ?)`,
		name, description,
	)
	if IsUniqueViolation(err) {
		return nil, errs.New(errs.Conflict, "warehouse %q already exists", name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating warehouse: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting warehouse id: %w", err)
	}

	return GetWarehouse(ctx, db, id)
}

// GetWarehouse returns a warehouse by ID.
func GetWarehouse(ctx context.Context, db *sql.DB, id int64) (*model.Warehouse, error) {
	w, err := scanWarehouse(conn(ctx, db).QueryRowContext(ctx, warehouseSelect+` WHERE w.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting warehouse: %w", err)
	}
	return w, nil
}

// ListWarehouses returns all warehouses ordered by name.
func ListWarehouses(ctx context.Context, db *sql.DB) ([]model.Warehouse, error) {
	rows, err := conn(ctx, db).QueryContext(ctx, warehouseSelect+` ORDER BY w.name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("listing warehouses: %w", err)
	}
	defer rows.Close()

	var warehouses []model.Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning warehouse: %w", err)
		}
		warehouses = append(warehouses, *w)
	}
	return warehouses, rows.Err()
}

// UpdateWarehouse updates a warehouse's name and description.
func UpdateWarehouse(ctx context.Context, db *sql.DB, id int64, name, description string) error {
	_, err := conn(ctx, db).ExecContext(ctx,
		`UPDATE warehouses SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, description, id,
	)
	if IsUniqueViolation(err) {
		return errs.New(errs.Conflict, "warehouse %q already exists", name)
	}
	if err != nil {
		return fmt.Errorf("updating warehouse: %w", err)
	}
	return nil
}

// DeleteWarehouse deletes a warehouse. Fails while it holds boxes or appears
// in the movement history.
func DeleteWarehouse(ctx context.Context, db *sql.DB, id int64) error {
	return WithTx(ctx, db, func(ctx context.Context) error {
		q := conn(ctx, db)

		var boxes, moves int
		err := q.QueryRowContext(ctx,
			`SELECT (SELECT COUNT(*) FROM boxes WHERE warehouse_id = ?),
			        (SELECT COUNT(*) FROM movements WHERE from_warehouse_id = ? OR to_warehouse_id = ?)`,
			id, id, id,
		).Scan(&boxes, &moves)
		if err != nil {
			return fmt.Errorf("checking warehouse references: %w", err)
		}
		if boxes > 0 {
			return errs.New(errs.Conflict, "warehouse still holds %d boxes", boxes)
		}
		if moves > 0 {
			return errs.New(errs.Conflict, "warehouse is referenced by %d movements", moves)
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM warehouses WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting warehouse: %w", err)
		}
		return nil
	})
}
