package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shibalab/souko/internal/errs"
	"github.com/shibalab/souko/internal/model"
)

const categorySelect = `SELECT c.id, c.name, c.created_at, c.updated_at,
        (SELECT COUNT(*) FROM items i WHERE i.category_id = c.id AND i.deleted_at IS NULL) AS item_count
 FROM categories c`

func scanCategory(row interface{ Scan(...any) error }) (*model.Category, error) {
	c := &model.Category{}
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt, &c.ItemCount); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCategory creates a category. Names are unique ignoring case.
func CreateCategory(ctx context.Context, db *sql.DB, name string) (*model.Category, error) {
	result, err := conn(ctx, db).ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if IsUniqueViolation(err) {
		return nil, errs.New(errs.Conflict, "category %q already exists", name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting category id: %w", err)
	}

	return GetCategory(ctx, db, id)
}

// GetCategory returns a category by ID.
func GetCategory(ctx context.Context, db *sql.DB, id int64) (*model.Category, error) {
	c, err := scanCategory(conn(ctx, db).QueryRowContext(ctx, categorySelect+` WHERE c.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, db *sql.DB) ([]model.Category, error) {
	rows, err := conn(ctx, db).QueryContext(ctx, categorySelect+` ORDER BY c.name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// UpdateCategory renames a category.
func UpdateCategory(ctx context.Context, db *sql.DB, id int64, name string) error {
	_, err := conn(ctx, db).ExecContext(ctx,
		`UPDATE categories SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, id,
	)
	if IsUniqueViolation(err) {
		return errs.New(errs.Conflict, "category %q already exists", name)
	}
	if err != nil {
		return fmt.Errorf("updating category: %w", err)
	}
	return nil
}

// DeleteCategory deletes a category. Fails while items use it.
func DeleteCategory(ctx context.Context, db *sql.DB, id int64) error {
	return WithTx(ctx, db, func(ctx context.Context) error {
		q := conn(ctx, db)

		var count int
		err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM items WHERE category_id = ?`, id,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("checking category items: %w", err)
		}
		if count > 0 {
			return errs.New(errs.Conflict, "category is used by %d items", count)
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting category: %w", err)
		}
		return nil
	})
}
