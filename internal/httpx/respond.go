package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-order-saga/internal/apperr"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, apperr.ErrValidation):
		code, msg = http.StatusBadRequest, lastSegment(err)
	case errors.Is(err, apperr.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, apperr.ErrConflict):
		code, msg = http.StatusConflict, "duplicate entry"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

// lastSegment strips wrapping prefixes from a validation error, leaving the
// field message.
func lastSegment(err error) string {
	s := err.Error()
	if i := strings.LastIndex(s, ": "); i >= 0 {
		return s[i+2:]
	}
	return s
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func validUUID(w http.ResponseWriter, id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "validation failed (uuid is expected)"})
		return false
	}
	return true
}
