package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shibalab/souko/internal/clock"
	"github.com/shibalab/souko/internal/model"
	"github.com/shibalab/souko/internal/store"
)

// DashboardHandler serves the per-user overview.
type DashboardHandler struct {
	DB           *sql.DB
	Clock        clock.Clock
	NoticePeriod time.Duration
	RecentLimit  int
}

type dashboardTotals struct {
	Items          int `json:"items"`
	ActiveRentals  int `json:"active_rentals"`
	OverdueRentals int `json:"overdue_rentals"`
}

type dashboardResponse struct {
	ActiveRentals  []model.Rental       `json:"active_rentals"`
	OverdueRentals []model.Rental       `json:"overdue_rentals"`
	Notifications  []model.Notification `json:"notifications"`

	// Admin only.
	RecentRentals []model.Rental  `json:"recent_rentals,omitempty"`
	Totals        *dashboardTotals `json:"totals,omitempty"`
}

// Get handles GET /api/dashboard.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	now := h.Clock.Now()

	var (
		mine      []model.Rental
		recent    []model.Rental
		allActive []model.Rental
		itemCount int
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		mine, err = store.ListActiveRentalsByUser(ctx, h.DB, claims.UserID)
		return err
	})
	if claims.IsAdmin() {
		g.Go(func() error {
			var err error
			recent, err = store.ListRentals(ctx, h.DB, h.RecentLimit)
			return err
		})
		g.Go(func() error {
			var err error
			allActive, err = store.ListActiveRentals(ctx, h.DB)
			return err
		})
		g.Go(func() error {
			var err error
			itemCount, err = store.CountItems(ctx, h.DB)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, r, err, "failed to load dashboard")
		return
	}

	resp := dashboardResponse{
		ActiveRentals:  nonNil(mine),
		OverdueRentals: overdue(mine, now),
		Notifications:  notifications(mine, now, h.NoticePeriod),
	}
	if claims.IsAdmin() {
		resp.RecentRentals = nonNil(recent)
		resp.Totals = &dashboardTotals{
			Items:          itemCount,
			ActiveRentals:  len(allActive),
			OverdueRentals: len(overdue(allActive, now)),
		}
	}

	jsonResponse(w, http.StatusOK, resp)
}

func nonNil(rentals []model.Rental) []model.Rental {
	if rentals == nil {
		return []model.Rental{}
	}
	return rentals
}

// overdue keeps the rentals past their due date. Input is ordered by due
// date, so the result is too.
func overdue(rentals []model.Rental, now time.Time) []model.Rental {
	out := []model.Rental{}
	for _, r := range rentals {
		if r.Overdue(now) {
			out = append(out, r)
		}
	}
	return out
}

// notifications returns at most one reminder per active rental. Overdue
// wins over long_rental.
func notifications(rentals []model.Rental, now time.Time, notice time.Duration) []model.Notification {
	out := []model.Notification{}
	for _, r := range rentals {
		if !r.Active() {
			continue
		}

		n := model.Notification{
			RentalID: r.ID,
			ItemID:   r.ItemID,
			RentedAt: r.RentedAt,
			DueDate:  r.DueDate,
		}
		if r.Item != nil {
			n.ItemName = r.Item.Name
		}

		switch {
		case r.Overdue(now):
			n.Type = model.NotificationOverdue
			n.Message = fmt.Sprintf("%s was due on %s", n.ItemName, r.DueDate.Format(time.DateOnly))
		case now.Sub(r.RentedAt) > notice:
			n.Type = model.NotificationLongRental
			n.Message = fmt.Sprintf("%s has been rented for %d days", n.ItemName, int(now.Sub(r.RentedAt).Hours()/24))
		default:
			continue
		}
		out = append(out, n)
	}
	return out
}
