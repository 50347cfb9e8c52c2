package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shibalab/souko/internal/model"
)

const movementSelect = `SELECT m.id, m.box_id, m.from_warehouse_id, m.to_warehouse_id, m.moved_at, m.moved_by,
        b.name AS box_name, fw.name AS from_warehouse_name, tw.name AS to_warehouse_name,
        u.name AS moved_by_name
 FROM movements m
 JOIN boxes b ON b.id = m.box_id
 JOIN warehouses fw ON fw.id = m.from_warehouse_id
 JOIN warehouses tw ON tw.id = m.to_warehouse_id
 LEFT JOIN users u ON u.id = m.moved_by`

func scanMovement(row interface{ Scan(...any) error }) (*model.Movement, error) {
	m := &model.Movement{}
	var movedByName sql.NullString
	if err := row.Scan(&m.ID, &m.BoxID, &m.FromWarehouseID, &m.ToWarehouseID, &m.MovedAt, &m.MovedBy,
		&m.BoxName, &m.FromWarehouseName, &m.ToWarehouseName, &movedByName); err != nil {
		return nil, err
	}
	m.MovedByName = movedByName.String
	return m, nil
}

// GetMovement returns a movement by ID.
func GetMovement(ctx context.Context, db *sql.DB, id int64) (*model.Movement, error) {
	m, err := scanMovement(conn(ctx, db).QueryRowContext(ctx, movementSelect+` WHERE m.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting movement: %w", err)
	}
	return m, nil
}

// ListMovements returns movements newest first, optionally for one box.
func ListMovements(ctx context.Context, db *sql.DB, boxID int64) ([]model.Movement, error) {
	query := movementSelect
	var args []any
	if boxID > 0 {
		query += ` WHERE m.box_id = ?`
		args = append(args, boxID)
	}
	query += ` ORDER BY m.moved_at DESC, m.id DESC`

	rows, err := conn(ctx, db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing movements: %w", err)
	}
	defer rows.Close()

	var movements []model.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		movements = append(movements, *m)
	}
	return movements, rows.Err()
}
