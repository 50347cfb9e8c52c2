package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shibalab/souko/internal/model"
	"github.com/shibalab/souko/internal/store"
)

// WarehousesHandler handles warehouse endpoints.
type WarehousesHandler struct {
	DB *sql.DB
}

type warehouseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type warehouseDetail struct {
	*model.Warehouse
	Boxes []model.Box `json:"boxes"`
}

// List handles GET /api/warehouses.
func (h *WarehousesHandler) List(w http.ResponseWriter, r *http.Request) {
	warehouses, err := store.ListWarehouses(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err, "failed to list warehouses")
		return
	}
	if warehouses == nil {
		warehouses = []model.Warehouse{}
	}
	jsonResponse(w, http.StatusOK, warehouses)
}

// Create handles POST /api/warehouses.
func (h *WarehousesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req warehouseRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	warehouse, err := store.CreateWarehouse(r.Context(), h.DB, name, strings.TrimSpace(req.Description))
	if err != nil {
		writeError(w, r, err, "failed to create warehouse")
		return
	}

	slog.Info("warehouse created", "user", GetClaims(r.Context()).Email, "warehouse", warehouse.Name)
	jsonResponse(w, http.StatusCreated, warehouse)
}

// Get handles GET /api/warehouses/{id}.
func (h *WarehousesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid warehouse id")
		return
	}

	warehouse, err := store.GetWarehouse(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get warehouse")
		return
	}
	if warehouse == nil {
		jsonError(w, http.StatusNotFound, "warehouse not found")
		return
	}

	boxes, err := store.ListBoxes(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to list boxes")
		return
	}
	if boxes == nil {
		boxes = []model.Box{}
	}

	jsonResponse(w, http.StatusOK, warehouseDetail{Warehouse: warehouse, Boxes: boxes})
}

// Update handles PUT /api/warehouses/{id}.
func (h *WarehousesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid warehouse id")
		return
	}

	var req warehouseRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	existing, err := store.GetWarehouse(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get warehouse")
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "warehouse not found")
		return
	}

	if err := store.UpdateWarehouse(r.Context(), h.DB, id, name, strings.TrimSpace(req.Description)); err != nil {
		writeError(w, r, err, "failed to update warehouse")
		return
	}

	warehouse, err := store.GetWarehouse(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get warehouse")
		return
	}
	jsonResponse(w, http.StatusOK, warehouse)
}

// Delete handles DELETE /api/warehouses/{id}.
func (h *WarehousesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid warehouse id")
		return
	}

	existing, err := store.GetWarehouse(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get warehouse")
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "warehouse not found")
		return
	}

	if err := store.DeleteWarehouse(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err, "failed to delete warehouse")
		return
	}

	slog.Info("warehouse deleted", "user", GetClaims(r.Context()).Email, "warehouse", existing.Name)
	jsonResponse(w, http.StatusOK, messageResponse{Message: "warehouse deleted"})
}
