package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// validator accumulates field errors so one response reports all of them.
type validator struct {
	fields []FieldError
}

func (v *validator) add(field, format string, args ...any) {
	v.fields = append(v.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) required(field, s string) bool {
	if strings.TrimSpace(s) == "" {
		v.add(field, "is required")
		return false
	}
	return true
}

func (v *validator) uuid(field, s string) {
	if _, err := uuid.Parse(s); err != nil {
		v.add(field, "must be a valid uuid")
	}
}

func (v *validator) email(field, s string) {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		v.add(field, "must be a valid email")
	}
}

func (v *validator) length(field, s string, lo, hi int) {
	if n := len([]rune(s)); n < lo || n > hi {
		v.add(field, "length must be between %d and %d", lo, hi)
	}
}

func (v *validator) atLeast(field string, n, lo int64) {
	if n < lo {
		v.add(field, "must be greater than or equal to %d", lo)
	}
}

func (v *validator) between(field string, n, lo, hi int64) {
	if n < lo || n > hi {
		v.add(field, "must be between %d and %d", lo, hi)
	}
}

func (v *validator) oneOf(field, s string, allowed ...string) {
	for _, a := range allowed {
		if s == a {
			return
		}
	}
	v.add(field, "must be one of [%s]", strings.Join(allowed, ", "))
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &ValidationError{Fields: []FieldError{{Field: "body", Message: decodeMessage(err)}}}
	}
	if dec.More() {
		return &ValidationError{Fields: []FieldError{{Field: "body", Message: "must contain a single JSON object"}}}
	}
	return nil
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "is required"
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %s must be %s", typeErr.Field, typeErr.Type)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return strings.TrimPrefix(err.Error(), "json: ")
	default:
		return "malformed JSON"
	}
}

func (v *validator) queryInt(r *http.Request, field string, def int) int {
	raw := r.URL.Query().Get(field)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.add(field, "must be an integer")
		return def
	}
	return n
}

func (v *validator) queryBool(r *http.Request, field string) *bool {
	raw := r.URL.Query().Get(field)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		v.add(field, "must be a boolean")
		return nil
	}
	return &b
}

// queryDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func (v *validator) queryDate(r *http.Request, field string) *time.Time {
	raw := r.URL.Query().Get(field)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	v.add(field, "must be an ISO 8601 date")
	return nil
}
