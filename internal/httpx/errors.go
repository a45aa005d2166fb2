package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
)

// FieldError is one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem of one request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "VALIDATION_ERROR: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) ErrorKey() string { return apperr.ErrValidation.Key }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest }
func (e *ValidationError) Is(target error) bool {
	return target == apperr.ErrValidation
}

type errorBody struct {
	Message   string       `json:"message"`
	Status    int          `json:"status"`
	Key       string       `json:"key"`
	ErrorCode int          `json:"errorCode"`
	Errors    []FieldError `json:"errors,omitempty"`
}

// WriteError renders err as the API error envelope. Unclassified errors are
// reported as INTERNAL_SERVER_ERROR without their message.
func WriteError(w http.ResponseWriter, err error) {
	key := apperr.Key(err)
	status := apperr.HTTPStatus(err)
	body := errorBody{
		Message:   err.Error(),
		Status:    status,
		Key:       key,
		ErrorCode: apperr.Code(key),
	}
	if status >= http.StatusInternalServerError && key == apperr.ErrInternal.Key {
		body.Message = "Internal server error"
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		body.Message = "Validation failed"
		body.Errors = ve.Fields
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type envelope struct {
	Data any `json:"data"`
}

func writeData(w http.ResponseWriter, code int, v any) {
	writeJSON(w, code, envelope{Data: v})
}
