package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shibalab/souko/internal/errs"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Available *int   `json:"available,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorResponse{Error: message, Code: codeFor(status)})
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(errs.InvalidInput)
	case http.StatusNotFound:
		return string(errs.NotFound)
	case http.StatusConflict:
		return string(errs.Conflict)
	case http.StatusForbidden:
		return string(errs.Forbidden)
	case http.StatusUnauthorized:
		return "unauthorized"
	default:
		return string(errs.Internal)
	}
}

// writeError maps err to a response. Classified errors keep their message;
// anything else is logged and reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	e, ok := errs.As(err)
	if !ok || e.Kind == errs.Internal {
		slog.Error(action, "error", err, "request_id", RequestID(r.Context()))
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := e.HTTPStatus()
	jsonResponse(w, status, errorResponse{
		Error:     e.Message,
		Code:      string(e.Kind),
		Available: e.Available,
	})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// queryID parses an optional numeric query parameter. Empty means 0.
func queryID(r *http.Request, key string) (int64, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	return id, err == nil && id > 0
}
