// Package rental owns the link between an item's stock count and its
// outstanding rentals. Every quantity change for a loan, a return or a
// stock correction goes through the rule table in this file.
package rental

import (
	"github.com/shibalab/souko/internal/errs"
	"github.com/shibalab/souko/internal/model"
)

// rule is the quantity arithmetic for one item type. pre is the stock
// before the operation, q the rented quantity.
type rule struct {
	loan  func(pre, q int) (int, error)
	ret   func(pre, q int) int
	bound func(qty int) bool
}

var rules = map[model.ItemType]rule{
	model.ItemUnique: {
		loan:  loanUnique,
		ret:   func(_, _ int) int { return 1 },
		bound: func(qty int) bool { return qty == 0 || qty == 1 },
	},
	model.ItemCountable: {
		loan:  loanFromStock,
		ret:   func(pre, q int) int { return pre + q },
		bound: nonNegative,
	},
	model.ItemConsumable: {
		loan:  loanFromStock,
		ret:   func(pre, _ int) int { return pre },
		bound: nonNegative,
	},
}

func loanUnique(pre, q int) (int, error) {
	if q != 1 {
		return 0, errs.New(errs.InvalidInput, "unique items must request exactly 1")
	}
	if pre != 1 {
		return 0, errs.NotAvailable()
	}
	return 0, nil
}

func loanFromStock(pre, q int) (int, error) {
	if q <= 0 {
		return 0, errs.New(errs.InvalidInput, "quantity must be positive")
	}
	if pre < q {
		return 0, errs.InsufficientStock(pre)
	}
	return pre - q, nil
}

func nonNegative(qty int) bool { return qty >= 0 }

func lookup(t model.ItemType) (rule, error) {
	r, ok := rules[t]
	if !ok {
		return rule{}, errs.New(errs.Internal, "unknown item type %q", t)
	}
	return r, nil
}

// ApplyLoan returns the stock left after lending q units of an item of type t
// that currently has pre units.
func ApplyLoan(t model.ItemType, pre, q int) (int, error) {
	r, err := lookup(t)
	if err != nil {
		return 0, err
	}
	return r.loan(pre, q)
}

// ApplyReturn returns the stock after q lent units of an item of type t come
// back to a shelf holding pre units.
func ApplyReturn(t model.ItemType, pre, q int) (int, error) {
	r, err := lookup(t)
	if err != nil {
		return 0, err
	}
	return r.ret(pre, q), nil
}

// ValidateQuantity checks that qty is a legal stock count for type t.
func ValidateQuantity(t model.ItemType, qty int) error {
	r, err := lookup(t)
	if err != nil {
		return errs.New(errs.InvalidInput, "unknown item type %q", t)
	}
	if !r.bound(qty) {
		if t == model.ItemUnique {
			return errs.New(errs.InvalidInput, "unique items must have quantity 0 or 1")
		}
		return errs.New(errs.InvalidInput, "quantity cannot be negative")
	}
	return nil
}

// Adjust applies a manual stock correction of delta units. Unique items
// cannot be corrected while on loan since their count is owned by the rental.
func Adjust(t model.ItemType, pre, delta, activeRentals int) (int, error) {
	if delta == 0 {
		return 0, errs.New(errs.InvalidInput, "delta must be non-zero")
	}
	if t == model.ItemUnique && activeRentals > 0 {
		return 0, errs.New(errs.Conflict, "item is on loan")
	}
	next := pre + delta
	if err := ValidateQuantity(t, next); err != nil {
		return 0, err
	}
	return next, nil
}

// CheckTypeChange validates switching an item from type from to type to.
func CheckTypeChange(from, to model.ItemType, qty, activeRentals int) error {
	if !to.Valid() {
		return errs.New(errs.InvalidInput, "unknown item type %q", to)
	}
	if from == to {
		return nil
	}
	if activeRentals > 0 {
		return errs.New(errs.Conflict, "cannot change type while the item has %d active rentals", activeRentals)
	}
	return ValidateQuantity(to, qty)
}
