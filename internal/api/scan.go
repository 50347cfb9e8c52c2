package api

import (
	"database/sql"
	"net/http"

	"github.com/shibalab/souko/internal/model"
	"github.com/shibalab/souko/internal/qr"
	"github.com/shibalab/souko/internal/store"
)

// ScanHandler resolves scanned QR references.
type ScanHandler struct {
	DB *sql.DB
}

type scanRequest struct {
	Data string `json:"data"`
}

type scanResponse struct {
	Type string      `json:"type"`
	Item *model.Item `json:"item,omitempty"`
	Box  *model.Box  `json:"box,omitempty"`
}

// Resolve handles POST /api/scan.
func (h *ScanHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Data == "" {
		jsonError(w, http.StatusBadRequest, "data required")
		return
	}

	target, ok := qr.Parse(req.Data)
	if !ok {
		jsonError(w, http.StatusNotFound, "unrecognised code")
		return
	}

	switch target.Kind {
	case qr.KindItem:
		item, err := store.GetItem(r.Context(), h.DB, target.ID)
		if err != nil {
			writeError(w, r, err, "failed to get item")
			return
		}
		if item == nil || item.DeletedAt != nil {
			jsonError(w, http.StatusNotFound, "item not found")
			return
		}
		jsonResponse(w, http.StatusOK, scanResponse{Type: qr.KindItem, Item: item})

	case qr.KindBox:
		box, err := store.GetBox(r.Context(), h.DB, target.ID)
		if err != nil {
			writeError(w, r, err, "failed to get box")
			return
		}
		if box == nil {
			jsonError(w, http.StatusNotFound, "box not found")
			return
		}
		jsonResponse(w, http.StatusOK, scanResponse{Type: qr.KindBox, Box: box})
	}
}
