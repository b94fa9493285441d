package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spendplan/internal/core"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

// userParam returns the sanitized user_id query parameter.
func userParam(q url.Values) (string, error) {
	id := sanitizeInput(q.Get("user_id"))
	if id == "" {
		return "", core.ErrEmptyUser
	}
	return id, nil
}

// decodeJSON reads one JSON object into dst, rejecting unknown fields and
// bodies over maxBodyBytes. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	return nil
}

// parseLimit reads a positive "limit" parameter capped at maxLimit.
func parseLimit(q url.Values, def, maxLimit int) int {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxLimit)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
