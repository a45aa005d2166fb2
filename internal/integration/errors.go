package integration

import (
	"fmt"
	"net/http"

	"github.com/ariefcatur/go-sales-orders/internal/apperr"
)

// Error is the normalised form of any failed gateway call: transport
// failures and non-2xx responses alike.
type Error struct {
	Status   int
	Service  string
	Gateway  string
	Method   string
	URL      string
	Upstream []byte
	Err      error
}

func (e *Error) Error() string {
	target := e.Service
	if e.Gateway != "" {
		target += "/" + e.Gateway
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s %s: %v", apperr.ErrIntegration.Key, target, e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s %s %s returned %d", apperr.ErrIntegration.Key, target, e.Method, e.URL, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports INTEGRATION_ERROR membership.
func (e *Error) Is(target error) bool {
	t, ok := target.(*apperr.Error)
	return ok && t.Key == apperr.ErrIntegration.Key
}

func (e *Error) ErrorKey() string { return apperr.ErrIntegration.Key }

func (e *Error) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}
