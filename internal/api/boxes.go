package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shibalab/souko/internal/clock"
	"github.com/shibalab/souko/internal/errs"
	"github.com/shibalab/souko/internal/model"
	"github.com/shibalab/souko/internal/qr"
	"github.com/shibalab/souko/internal/store"
)

// BoxesHandler handles box and movement endpoints.
type BoxesHandler struct {
	DB      *sql.DB
	Clock   clock.Clock
	BaseURL string
}

type createBoxRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	WarehouseID int64  `json:"warehouse_id"`
}

type updateBoxRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// WarehouseID moves the box when set to a different warehouse.
	WarehouseID int64 `json:"warehouse_id"`
}

type moveBoxRequest struct {
	WarehouseID int64 `json:"warehouse_id"`
}

type boxDetail struct {
	*model.Box
	Items []model.Item `json:"items"`
}

// List handles GET /api/boxes.
func (h *BoxesHandler) List(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := queryID(r, "warehouse_id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid warehouse_id")
		return
	}

	boxes, err := store.ListBoxes(r.Context(), h.DB, warehouseID)
	if err != nil {
		writeError(w, r, err, "failed to list boxes")
		return
	}
	if boxes == nil {
		boxes = []model.Box{}
	}
	jsonResponse(w, http.StatusOK, boxes)
}

// Create handles POST /api/boxes.
func (h *BoxesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBoxRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || req.WarehouseID <= 0 {
		jsonError(w, http.StatusBadRequest, "name and warehouse_id required")
		return
	}

	var box *model.Box
	err := store.WithTx(r.Context(), h.DB, func(ctx context.Context) error {
		created, err := store.CreateBox(ctx, h.DB, name, strings.TrimSpace(req.Description), req.WarehouseID)
		if err != nil {
			return err
		}
		if err := store.SetBoxQRCode(ctx, h.DB, created.ID, qr.BoxURL(h.BaseURL, created.ID)); err != nil {
			return err
		}
		box, err = store.GetBox(ctx, h.DB, created.ID)
		return err
	})
	if err != nil {
		writeError(w, r, err, "failed to create box")
		return
	}

	slog.Info("box created", "user", GetClaims(r.Context()).Email, "box", box.Name, "warehouse", box.WarehouseName)
	jsonResponse(w, http.StatusCreated, box)
}

// Get handles GET /api/boxes/{id}.
func (h *BoxesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid box id")
		return
	}

	box, err := store.GetBox(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get box")
		return
	}
	if box == nil {
		jsonError(w, http.StatusNotFound, "box not found")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, store.ItemFilter{BoxID: id})
	if err != nil {
		writeError(w, r, err, "failed to list box items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}

	jsonResponse(w, http.StatusOK, boxDetail{Box: box, Items: items})
}

// Update handles PUT /api/boxes/{id}.
func (h *BoxesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid box id")
		return
	}

	var req updateBoxRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	claims := GetClaims(r.Context())
	var box *model.Box
	err := store.WithTx(r.Context(), h.DB, func(ctx context.Context) error {
		current, err := store.GetBox(ctx, h.DB, id)
		if err != nil {
			return err
		}
		if current == nil {
			return errs.New(errs.NotFound, "box not found")
		}

		if err := store.UpdateBox(ctx, h.DB, id, name, strings.TrimSpace(req.Description)); err != nil {
			return err
		}
		if req.WarehouseID > 0 && req.WarehouseID != current.WarehouseID {
			if _, err := store.MoveBox(ctx, h.DB, id, req.WarehouseID, &claims.UserID, h.Clock.Now()); err != nil {
				return err
			}
		}

		box, err = store.GetBox(ctx, h.DB, id)
		return err
	})
	if err != nil {
		writeError(w, r, err, "failed to update box")
		return
	}

	jsonResponse(w, http.StatusOK, box)
}

// Delete handles DELETE /api/boxes/{id}.
func (h *BoxesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid box id")
		return
	}

	box, err := store.GetBox(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get box")
		return
	}
	if box == nil {
		jsonError(w, http.StatusNotFound, "box not found")
		return
	}

	if err := store.DeleteBox(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err, "failed to delete box")
		return
	}

	slog.Info("box deleted", "user", GetClaims(r.Context()).Email, "box", box.Name)
	jsonResponse(w, http.StatusOK, messageResponse{Message: "box deleted"})
}

// Move handles POST /api/boxes/{id}/move.
func (h *BoxesHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid box id")
		return
	}

	var req moveBoxRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WarehouseID <= 0 {
		jsonError(w, http.StatusBadRequest, "warehouse_id required")
		return
	}

	claims := GetClaims(r.Context())
	movement, err := store.MoveBox(r.Context(), h.DB, id, req.WarehouseID, &claims.UserID, h.Clock.Now())
	if err != nil {
		writeError(w, r, err, "failed to move box")
		return
	}

	slog.Info("box moved", "user", claims.Email, "box", movement.BoxName,
		"from", movement.FromWarehouseName, "to", movement.ToWarehouseName)
	jsonResponse(w, http.StatusOK, movement)
}

// Movements handles GET /api/movements.
func (h *BoxesHandler) Movements(w http.ResponseWriter, r *http.Request) {
	boxID, ok := queryID(r, "box_id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid box_id")
		return
	}

	movements, err := store.ListMovements(r.Context(), h.DB, boxID)
	if err != nil {
		writeError(w, r, err, "failed to list movements")
		return
	}
	if movements == nil {
		movements = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, movements)
}

// QRCode handles GET /api/boxes/{id}/qr.
func (h *BoxesHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid box id")
		return
	}

	box, err := store.GetBox(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get box")
		return
	}
	if box == nil {
		jsonError(w, http.StatusNotFound, "box not found")
		return
	}

	ref := box.QRCodeURL
	if ref == "" {
		ref = qr.BoxURL(h.BaseURL, id)
	}
	writePNG(w, r, ref)
}
