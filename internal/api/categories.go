package api

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/shibalab/souko/internal/model"
	"github.com/shibalab/souko/internal/store"
)

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	DB *sql.DB
}

type categoryRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListCategories(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, categories)
}

// Create handles POST /api/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	category, err := store.CreateCategory(r.Context(), h.DB, name)
	if err != nil {
		writeError(w, r, err, "failed to create category")
		return
	}
	jsonResponse(w, http.StatusCreated, category)
}

// Get handles GET /api/categories/{id}.
func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	category, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get category")
		return
	}
	if category == nil {
		jsonError(w, http.StatusNotFound, "category not found")
		return
	}
	jsonResponse(w, http.StatusOK, category)
}

// Update handles PUT /api/categories/{id}.
func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	existing, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get category")
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "category not found")
		return
	}

	if err := store.UpdateCategory(r.Context(), h.DB, id, name); err != nil {
		writeError(w, r, err, "failed to update category")
		return
	}

	category, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get category")
		return
	}
	jsonResponse(w, http.StatusOK, category)
}

// Delete handles DELETE /api/categories/{id}.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	existing, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get category")
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "category not found")
		return
	}

	if err := store.DeleteCategory(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err, "failed to delete category")
		return
	}
	jsonResponse(w, http.StatusOK, messageResponse{Message: "category deleted"})
}
