package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/apierr"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 16 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(d deps.Deps, w http.ResponseWriter, r *http.Request, err error) {
	apierr.Write(w, r, err, d.Logger)
}

// decodeJSON reads a single JSON value into v. Malformed or oversized bodies
// are a BadRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("%w: body larger than %d bytes", domain.ErrBadRequest, tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", domain.ErrBadRequest)
		default:
			return fmt.Errorf("%w: invalid json: %v", domain.ErrBadRequest, err)
		}
	}
	return nil
}
