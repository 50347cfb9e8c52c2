package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shibalab/souko/internal/clock"
	"github.com/shibalab/souko/internal/model"
	"github.com/shibalab/souko/internal/rental"
	"github.com/shibalab/souko/internal/store"
)

// RentalsHandler handles loan and return endpoints.
type RentalsHandler struct {
	DB               *sql.DB
	Rentals          *rental.Manager
	Clock            clock.Clock
	DefaultDuePeriod time.Duration
}

type createRentalRequest struct {
	ItemID   int64  `json:"item_id"`
	Quantity *int   `json:"quantity"`
	DueDate  string `json:"due_date"`
}

// parseDueDate accepts RFC 3339 timestamps and plain dates. A plain date
// means the end of that day in UTC.
func parseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Add(24*time.Hour - time.Second), true
	}
	return time.Time{}, false
}

// Create handles POST /api/rentals.
func (h *RentalsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRentalRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ItemID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id required")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	// An unparsable due date stays zero; the manager rejects it after the
	// item lookup.
	due := h.Clock.Now().Add(h.DefaultDuePeriod)
	if req.DueDate != "" {
		due, _ = parseDueDate(req.DueDate)
	}

	claims := GetClaims(r.Context())
	created, err := h.Rentals.Create(r.Context(), actorFrom(claims), rental.CreateRequest{
		ItemID:   req.ItemID,
		Quantity: quantity,
		DueDate:  due,
	})
	if err != nil {
		writeError(w, r, err, "failed to create rental")
		return
	}

	slog.Info("item rented", "user", claims.Email, "rental", created.ID, "item", created.ItemID, "quantity", created.Quantity)
	jsonResponse(w, http.StatusCreated, created)
}

// Return handles PUT /api/rentals/{id}/return.
func (h *RentalsHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid rental id")
		return
	}

	claims := GetClaims(r.Context())
	returned, err := h.Rentals.Return(r.Context(), actorFrom(claims), id)
	if err != nil {
		writeError(w, r, err, "failed to return rental")
		return
	}

	slog.Info("item returned", "user", claims.Email, "rental", returned.ID, "item", returned.ItemID)
	jsonResponse(w, http.StatusOK, returned)
}

// List handles GET /api/rentals.
func (h *RentalsHandler) List(w http.ResponseWriter, r *http.Request) {
	rentals, err := store.ListRentals(r.Context(), h.DB, 0)
	if err != nil {
		writeError(w, r, err, "failed to list rentals")
		return
	}
	if rentals == nil {
		rentals = []model.Rental{}
	}
	jsonResponse(w, http.StatusOK, rentals)
}

// Mine handles GET /api/rentals/me.
func (h *RentalsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	rentals, err := store.ListActiveRentalsByUser(r.Context(), h.DB, GetClaims(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err, "failed to list rentals")
		return
	}
	if rentals == nil {
		rentals = []model.Rental{}
	}
	jsonResponse(w, http.StatusOK, rentals)
}
