package web

// handlers_common.go holds request parsing helpers shared by the handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/go-chi/chi/v5"
)

// maxBodySize bounds JSON request bodies. Row batches are the largest.
const maxBodySize = 32 << 20

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parsePage reads page and limit. Missing or invalid values are left for
// the service to default.
func parsePage(r *http.Request) core.PageRequest {
	return core.PageRequest{
		Page:  parseIntParam(r, "page", 1),
		Limit: parseIntParam(r, "limit", 0),
	}
}

// parseEnumParam parses an optional enum query parameter.
func parseEnumParam[T any](r *http.Request, name string, parse func(string) (T, error)) (core.Optional[T], error) {
	val := strings.TrimSpace(r.URL.Query().Get(name))
	if val == "" {
		return core.None[T](), nil
	}
	v, err := parse(val)
	if err != nil {
		return core.None[T](), err
	}
	return core.Some(v), nil
}

// parseSince reads the progress cursor. A reconnecting event stream sends
// it back as Last-Event-ID; otherwise the since query parameter is used.
// No cursor means "from the beginning".
func parseSince(r *http.Request) (time.Time, error) {
	val := r.Header.Get("Last-Event-ID")
	if val == "" {
		val = r.URL.Query().Get("since")
	}
	if val == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: since must be an RFC 3339 timestamp", core.ErrInvalidInput)
	}
	return t, nil
}

// importID returns the import id path parameter.
func importID(r *http.Request) string {
	return chi.URLParam(r, "importID")
}

// decodeJSON decodes a bounded JSON body into v. Malformed bodies wrap
// core.ErrInvalidInput so they answer 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", core.ErrInvalidInput)
		}
		if core.IsInvalidInput(err) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return nil
}
