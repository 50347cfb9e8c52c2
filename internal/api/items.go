package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shibalab/souko/internal/errs"
	"github.com/shibalab/souko/internal/imaging"
	"github.com/shibalab/souko/internal/model"
	"github.com/shibalab/souko/internal/qr"
	"github.com/shibalab/souko/internal/rental"
	"github.com/shibalab/souko/internal/store"
)

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	DB      *sql.DB
	Rentals *rental.Manager
	BaseURL string
}

type createItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Quantity    *int   `json:"quantity"`
	CategoryID  *int64 `json:"category_id"`
	BoxID       *int64 `json:"box_id"`
}

type updateItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	CategoryID  *int64 `json:"category_id"`
	BoxID       *int64 `json:"box_id"`
	ImageURL    string `json:"image_url"`
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

type itemDetail struct {
	*model.Item
	ActiveRentals []model.Rental `json:"active_rentals"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := queryID(r, "category_id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category_id")
		return
	}
	boxID, ok := queryID(r, "box_id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid box_id")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, store.ItemFilter{
		Query:      r.URL.Query().Get("q"),
		CategoryID: categoryID,
		BoxID:      boxID,
	})
	if err != nil {
		writeError(w, r, err, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	itemType, ok := model.ParseItemType(req.Type)
	if !ok {
		jsonError(w, http.StatusBadRequest, "type must be one of UNIQUE, COUNTABLE, CONSUMABLE")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if err := rental.ValidateQuantity(itemType, quantity); err != nil {
		writeError(w, r, err, "invalid quantity")
		return
	}

	params := store.ItemParams{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Type:        itemType,
		CategoryID:  req.CategoryID,
		BoxID:       req.BoxID,
	}

	var item *model.Item
	err := store.WithTx(r.Context(), h.DB, func(ctx context.Context) error {
		created, err := store.CreateItem(ctx, h.DB, params, quantity)
		if err != nil {
			return err
		}
		if err := store.SetItemQRCode(ctx, h.DB, created.ID, qr.ItemURL(h.BaseURL, created.ID)); err != nil {
			return err
		}
		item, err = store.GetItem(ctx, h.DB, created.ID)
		return err
	})
	if err != nil {
		writeError(w, r, err, "failed to create item")
		return
	}

	slog.Info("item created", "user", GetClaims(r.Context()).Email, "item", item.ID, "type", item.Type, "quantity", item.Quantity)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	rentals, err := store.ListActiveRentalsByItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to list item rentals")
		return
	}
	if rentals == nil {
		rentals = []model.Rental{}
	}

	jsonResponse(w, http.StatusOK, itemDetail{Item: item, ActiveRentals: rentals})
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	var item *model.Item
	err := store.WithTx(r.Context(), h.DB, func(ctx context.Context) error {
		current, err := store.GetItem(ctx, h.DB, id)
		if err != nil {
			return err
		}
		if current == nil || current.DeletedAt != nil {
			return errs.New(errs.NotFound, "item not found")
		}

		itemType := current.Type
		if req.Type != "" {
			t, ok := model.ParseItemType(req.Type)
			if !ok {
				return errs.New(errs.InvalidInput, "type must be one of UNIQUE, COUNTABLE, CONSUMABLE")
			}
			itemType = t
		}
		if itemType != current.Type {
			active, err := store.CountActiveRentals(ctx, h.DB, id)
			if err != nil {
				return err
			}
			if err := rental.CheckTypeChange(current.Type, itemType, current.Quantity, active); err != nil {
				return err
			}
		}

		err = store.UpdateItem(ctx, h.DB, id, store.ItemParams{
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			Type:        itemType,
			CategoryID:  req.CategoryID,
			BoxID:       req.BoxID,
			ImageURL:    strings.TrimSpace(req.ImageURL),
		})
		if err != nil {
			return err
		}
		item, err = store.GetItem(ctx, h.DB, id)
		return err
	})
	if err != nil {
		writeError(w, r, err, "failed to update item")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err, "failed to delete item")
		return
	}

	slog.Info("item deleted", "user", GetClaims(r.Context()).Email, "item", id)
	jsonResponse(w, http.StatusOK, messageResponse{Message: "item deleted"})
}

// AdjustStock handles POST /api/items/{id}/stock.
func (h *ItemsHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req adjustStockRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Rentals.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		writeError(w, r, err, "failed to adjust stock")
		return
	}

	slog.Info("stock adjusted", "user", GetClaims(r.Context()).Email, "item", id, "delta", req.Delta, "quantity", item.Quantity)
	jsonResponse(w, http.StatusOK, item)
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.Process(file, imaging.MaxDimension)
	if errors.Is(err, imaging.ErrUnsupported) {
		jsonError(w, http.StatusBadRequest, "image must be JPEG or PNG")
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	url := fmt.Sprintf("/api/items/%d/image", id)
	if err := store.SetItemImage(r.Context(), h.DB, id, photo.Data, photo.MIME, url); err != nil {
		writeError(w, r, err, "failed to save image")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"image_url": url,
		"width":     photo.Width,
		"height":    photo.Height,
	})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// QRCode handles GET /api/items/{id}/qr.
func (h *ItemsHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err, "failed to get item")
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	ref := item.QRCodeURL
	if ref == "" {
		ref = qr.ItemURL(h.BaseURL, id)
	}
	writePNG(w, r, ref)
}

// writePNG renders ref as a QR code image.
func writePNG(w http.ResponseWriter, r *http.Request, ref string) {
	png, err := qr.PNG(ref, qr.DefaultSize)
	if err != nil {
		writeError(w, r, err, "failed to render qr code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
