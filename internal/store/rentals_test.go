package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shibalab/souko/internal/db"
	"github.com/shibalab/souko/internal/errs"
	"github.com/shibalab/souko/internal/model"
)

func TestRentalLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "borrower@example.com", "Borrower", "hash", model.RoleMember)
	item, _ := CreateItem(ctx, database, ItemParams{Name: "Drill", Type: model.ItemCountable}, 5)

	rentedAt := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	id, err := CreateRental(ctx, database, &model.Rental{
		ItemID: item.ID, UserID: user.ID, Quantity: 2,
		RentedAt: rentedAt, DueDate: rentedAt.Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateRental: %v", err)
	}

	r, err := GetRental(ctx, database, id)
	if err != nil {
		t.Fatalf("GetRental: %v", err)
	}
	if !r.Active() || r.Quantity != 2 {
		t.Errorf("unexpected rental %+v", r)
	}
	if r.Item == nil || r.Item.Name != "Drill" || r.User == nil || r.User.Email != "borrower@example.com" {
		t.Errorf("expected item and borrower attached, got %+v / %+v", r.Item, r.User)
	}
	if !r.RentedAt.Equal(rentedAt) {
		t.Errorf("expected rented_at %v, got %v", rentedAt, r.RentedAt)
	}

	if n, _ := CountActiveRentals(ctx, database, item.ID); n != 1 {
		t.Errorf("expected 1 active rental, got %d", n)
	}

	returnedAt := rentedAt.Add(24 * time.Hour)
	if err := CloseRental(ctx, database, id, returnedAt); err != nil {
		t.Fatalf("CloseRental: %v", err)
	}
	if err := CloseRental(ctx, database, id, returnedAt.Add(time.Hour)); errs.KindOf(err) != errs.Conflict {
		t.Errorf("expected Conflict closing twice, got %v", err)
	}

	r, _ = GetRental(ctx, database, id)
	if r.ReturnedAt == nil || !r.ReturnedAt.Equal(returnedAt) {
		t.Errorf("expected first return time to stick, got %v", r.ReturnedAt)
	}
	if n, _ := CountActiveRentals(ctx, database, item.ID); n != 0 {
		t.Errorf("expected 0 active rentals, got %d", n)
	}

	missing, err := GetRental(ctx, database, 999)
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing rental, got %v / %v", missing, err)
	}
}

func TestRentalListings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alice, _ := CreateUser(ctx, database, "alice@example.com", "Alice", "hash", model.RoleMember)
	bob, _ := CreateUser(ctx, database, "bob@example.com", "Bob", "hash", model.RoleMember)
	item, _ := CreateItem(ctx, database, ItemParams{Name: "Chair", Type: model.ItemCountable}, 10)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rent := func(user int64, rentedDays, dueDays int) int64 {
		id, err := CreateRental(ctx, database, &model.Rental{
			ItemID: item.ID, UserID: user, Quantity: 1,
			RentedAt: base.AddDate(0, 0, rentedDays), DueDate: base.AddDate(0, 0, dueDays),
		})
		if err != nil {
			t.Fatalf("CreateRental: %v", err)
		}
		return id
	}

	late := rent(alice.ID, 0, 20)
	early := rent(alice.ID, 1, 5)
	closed := rent(alice.ID, 2, 3)
	rent(bob.ID, 3, 10)
	CloseRental(ctx, database, closed, base.AddDate(0, 0, 3))

	mine, _ := ListActiveRentalsByUser(ctx, database, alice.ID)
	if len(mine) != 2 || mine[0].ID != early || mine[1].ID != late {
		t.Errorf("expected alice's active rentals by due date, got %+v", mine)
	}

	active, _ := ListActiveRentals(ctx, database)
	if len(active) != 3 {
		t.Errorf("expected 3 active rentals, got %d", len(active))
	}

	byItem, _ := ListActiveRentalsByItem(ctx, database, item.ID)
	if len(byItem) != 3 {
		t.Errorf("expected 3 active rentals for item, got %d", len(byItem))
	}

	recent, _ := ListRentals(ctx, database, 2)
	if len(recent) != 2 || recent[0].UserID != bob.ID || recent[1].ID != closed {
		t.Errorf("expected the two newest rentals, got %+v", recent)
	}

	all, _ := ListRentals(ctx, database, 0)
	if len(all) != 4 {
		t.Errorf("expected 4 rentals, got %d", len(all))
	}
}

func TestWithTxRollsBack(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, _ := CreateItem(ctx, database, ItemParams{Name: "Glue", Type: model.ItemConsumable}, 5)
	boom := errors.New("boom")

	err := WithTx(ctx, database, func(ctx context.Context) error {
		if err := SetItemQuantity(ctx, database, item.ID, 1); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		return WithTx(ctx, database, func(ctx context.Context) error {
			if err := SetItemQuantity(ctx, database, item.ID, 0); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Quantity != 5 {
		t.Errorf("expected rollback to quantity 5, got %d", got.Quantity)
	}
}

func TestRentalItemLocation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "loc@example.com", "Loc", "hash", model.RoleMember)
	w, _ := CreateWarehouse(ctx, database, "Depot", "")
	b, _ := CreateBox(ctx, database, "Crate 7", "", w.ID)
	c, _ := CreateCategory(ctx, database, "Power tools")
	located, _ := CreateItem(ctx, database, ItemParams{Name: "Sander", Type: model.ItemCountable, CategoryID: &c.ID, BoxID: &b.ID}, 3)
	loose, _ := CreateItem(ctx, database, ItemParams{Name: "Rag", Type: model.ItemConsumable}, 3)

	now := time.Now().UTC()
	for _, itemID := range []int64{located.ID, loose.ID} {
		if _, err := CreateRental(ctx, database, &model.Rental{ItemID: itemID, UserID: user.ID, Quantity: 1, RentedAt: now, DueDate: now.Add(time.Hour)}); err != nil {
			t.Fatalf("CreateRental: %v", err)
		}
	}

	rentals, err := ListActiveRentalsByUser(ctx, database, user.ID)
	if err != nil || len(rentals) != 2 {
		t.Fatalf("expected 2 rentals, got %d / %v", len(rentals), err)
	}
	for _, r := range rentals {
		switch r.ItemID {
		case located.ID:
			if r.Item.CategoryName != "Power tools" || r.Item.BoxName != "Crate 7" || r.Item.WarehouseName != "Depot" {
				t.Errorf("unexpected location %q %q %q", r.Item.CategoryName, r.Item.BoxName, r.Item.WarehouseName)
			}
			if r.Item.WarehouseID == nil || *r.Item.WarehouseID != w.ID {
				t.Errorf("expected warehouse %d, got %v", w.ID, r.Item.WarehouseID)
			}
		case loose.ID:
			if r.Item.BoxName != "" || r.Item.WarehouseID != nil {
				t.Errorf("expected no location for loose item, got %+v", r.Item)
			}
		}
	}
}
