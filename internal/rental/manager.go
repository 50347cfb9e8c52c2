package rental

import (
	"context"
	"log/slog"
	"time"

	"github.com/shibalab/souko/internal/clock"
	"github.com/shibalab/souko/internal/errs"
	"github.com/shibalab/souko/internal/model"
)

// Store is the persistence the manager needs. Calls made with the context
// passed to WithTx's callback run in that transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	SetItemQuantity(ctx context.Context, id int64, quantity int) error
	CountActiveRentals(ctx context.Context, itemID int64) (int, error)
	CreateRental(ctx context.Context, r *model.Rental) (int64, error)
	GetRental(ctx context.Context, id int64) (*model.Rental, error)
	CloseRental(ctx context.Context, id int64, at time.Time) error
}

// Actor is the authenticated caller.
type Actor struct {
	UserID int64
	Admin  bool
}

// CreateRequest asks to borrow Quantity units of an item until DueDate.
type CreateRequest struct {
	ItemID   int64
	Quantity int
	DueDate  time.Time
}

// Manager runs loans, returns and stock corrections.
type Manager struct {
	store Store
	clock clock.Clock
}

// NewManager creates a Manager.
func NewManager(store Store, clk clock.Clock) *Manager {
	return &Manager{store: store, clock: clk}
}

// Create lends an item to the actor. All checks run before any write.
func (m *Manager) Create(ctx context.Context, actor Actor, req CreateRequest) (*model.Rental, error) {
	var created *model.Rental
	err := m.store.WithTx(ctx, func(ctx context.Context) error {
		item, err := m.store.GetItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if item == nil || item.DeletedAt != nil {
			return errs.New(errs.NotFound, "item not found")
		}

		now := m.clock.Now()
		if req.DueDate.IsZero() {
			return errs.New(errs.InvalidInput, "due_date must be RFC 3339 or YYYY-MM-DD")
		}
		if !req.DueDate.After(now) {
			return errs.New(errs.InvalidInput, "due date must be in the future")
		}
		if req.Quantity <= 0 {
			return errs.New(errs.InvalidInput, "quantity must be positive")
		}

		remaining, err := ApplyLoan(item.Type, item.Quantity, req.Quantity)
		if err != nil {
			return err
		}

		if err := m.store.SetItemQuantity(ctx, item.ID, remaining); err != nil {
			return err
		}

		id, err := m.store.CreateRental(ctx, &model.Rental{
			ItemID:   item.ID,
			UserID:   actor.UserID,
			Quantity: req.Quantity,
			RentedAt: now,
			DueDate:  req.DueDate.UTC(),
		})
		if err != nil {
			return err
		}

		created, err = m.store.GetRental(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Return closes an active rental and puts stock back according to the
// item's type. Only the borrower or an admin may return a rental.
func (m *Manager) Return(ctx context.Context, actor Actor, rentalID int64) (*model.Rental, error) {
	var closed *model.Rental
	err := m.store.WithTx(ctx, func(ctx context.Context) error {
		r, err := m.store.GetRental(ctx, rentalID)
		if err != nil {
			return err
		}
		if r == nil {
			return errs.New(errs.NotFound, "rental not found")
		}
		if !r.Active() {
			return errs.New(errs.Conflict, "rental has already been returned")
		}
		if r.UserID != actor.UserID && !actor.Admin {
			return errs.New(errs.Forbidden, "only the borrower or an admin can return this rental")
		}

		item, err := m.store.GetItem(ctx, r.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			slog.Error("rental references a missing item", "rental", r.ID, "item", r.ItemID)
			return errs.New(errs.Internal, "failed to return rental")
		}

		restored, err := ApplyReturn(item.Type, item.Quantity, r.Quantity)
		if err != nil {
			return err
		}
		if restored != item.Quantity {
			if err := m.store.SetItemQuantity(ctx, item.ID, restored); err != nil {
				return err
			}
		}

		if err := m.store.CloseRental(ctx, r.ID, m.clock.Now()); err != nil {
			return err
		}

		closed, err = m.store.GetRental(ctx, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// AdjustStock applies a manual stock correction to an item.
func (m *Manager) AdjustStock(ctx context.Context, itemID int64, delta int) (*model.Item, error) {
	var adjusted *model.Item
	err := m.store.WithTx(ctx, func(ctx context.Context) error {
		item, err := m.store.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil || item.DeletedAt != nil {
			return errs.New(errs.NotFound, "item not found")
		}

		active, err := m.store.CountActiveRentals(ctx, itemID)
		if err != nil {
			return err
		}

		next, err := Adjust(item.Type, item.Quantity, delta, active)
		if err != nil {
			return err
		}
		if err := m.store.SetItemQuantity(ctx, itemID, next); err != nil {
			return err
		}

		adjusted, err = m.store.GetItem(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return adjusted, nil
}
