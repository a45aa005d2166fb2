// Package apperr defines the error taxonomy shared by the sales service layers.
//
// Every error carries a stable Key (e.g. NOT_FOUND) and an HTTP status. Wrapped
// errors keep their cause so errors.Is / errors.As keep working across layers.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// Error is a classified application error.
type Error struct {
	Key     string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Key + ": " + e.Err.Error()
	default:
		return e.Key
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Key.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Key == e.Key
}

var (
	ErrNotFound   = &Error{Key: "NOT_FOUND", Status: http.StatusNotFound}
	ErrValidation = &Error{Key: "VALIDATION_ERROR", Status: http.StatusBadRequest}

	ErrGatewayNotSupported = &Error{Key: "GATEWAY_NOT_SUPPORTED", Status: http.StatusUnprocessableEntity}
	ErrMethodNotSupported  = &Error{Key: "METHOD_NOT_SUPPORTED", Status: http.StatusUnprocessableEntity}
	ErrAmountOutOfRange    = &Error{Key: "AMOUNT_OUT_OF_RANGE", Status: http.StatusUnprocessableEntity}

	ErrPaymentAlreadyProcessed = &Error{Key: "PAYMENT_ALREADY_PROCESSED", Status: http.StatusConflict}
	ErrPaymentNotProcessed     = &Error{Key: "PAYMENT_NOT_PROCESSED", Status: http.StatusConflict}

	ErrIntegration              = &Error{Key: "INTEGRATION_ERROR", Status: http.StatusBadRequest}
	ErrPaymentProcessingFailed  = &Error{Key: "PAYMENT_PROCESSING_FAILED", Status: http.StatusBadGateway}
	ErrRefundProcessingFailed   = &Error{Key: "REFUND_PROCESSING_FAILED", Status: http.StatusBadGateway}
	ErrPaymentStatusCheckFailed = &Error{Key: "PAYMENT_STATUS_CHECK_FAILED", Status: http.StatusBadGateway}
	ErrPaymentStatisticsFailed  = &Error{Key: "PAYMENT_STATISTICS_FAILED", Status: http.StatusBadGateway}

	ErrTokenRequired         = &Error{Key: "TOKEN_REQUIRED", Status: http.StatusUnauthorized}
	ErrInvalidTokenFormat    = &Error{Key: "INVALID_TOKEN_FORMAT", Status: http.StatusUnauthorized}
	ErrInvalidToken          = &Error{Key: "INVALID_TOKEN", Status: http.StatusUnauthorized}
	ErrTokenExpired          = &Error{Key: "TOKEN_EXPIRED", Status: http.StatusUnauthorized}
	ErrInvalidTokenSignature = &Error{Key: "INVALID_TOKEN_SIGNATURE", Status: http.StatusUnauthorized}
	ErrTokenNotActive        = &Error{Key: "TOKEN_NOT_ACTIVE", Status: http.StatusUnauthorized}
	ErrTokenBlacklisted      = &Error{Key: "TOKEN_BLACKLISTED", Status: http.StatusUnauthorized}
	ErrMissingJWTSecret      = &Error{Key: "MISSING_JWT_SECRET", Status: http.StatusInternalServerError}

	ErrEndpointNotFound = &Error{Key: "API_ENDPOINT_NOT_FOUND", Status: http.StatusNotFound}
	ErrInternal         = &Error{Key: "INTERNAL_SERVER_ERROR", Status: http.StatusInternalServerError}
)

// New returns a copy of kind with a specific message.
func New(kind *Error, message string) *Error {
	return &Error{Key: kind.Key, Status: kind.Status, Message: message}
}

// Wrap classifies err as kind. The message keeps the cause: "KEY: cause".
func Wrap(kind *Error, err error) *Error {
	if err == nil {
		return New(kind, kind.Key)
	}
	return &Error{Key: kind.Key, Status: kind.Status, Message: kind.Key + ": " + err.Error(), Err: err}
}

// Key returns the classification key of err.
func Key(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Key
	}
	var k interface{ ErrorKey() string }
	if errors.As(err, &k) {
		return k.ErrorKey()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return "CANCELED"
	default:
		return ErrInternal.Key
	}
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	var s interface{ HTTPStatus() int }
	if errors.As(err, &s) {
		return s.HTTPStatus()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

var codes = map[string]int{
	"NOT_FOUND":                   1001,
	"VALIDATION_ERROR":            1002,
	"API_ENDPOINT_NOT_FOUND":      1003,
	"GATEWAY_NOT_SUPPORTED":       2001,
	"METHOD_NOT_SUPPORTED":        2002,
	"AMOUNT_OUT_OF_RANGE":         2003,
	"PAYMENT_ALREADY_PROCESSED":   2004,
	"PAYMENT_NOT_PROCESSED":       2005,
	"PAYMENT_PROCESSING_FAILED":   2006,
	"REFUND_PROCESSING_FAILED":    2007,
	"PAYMENT_STATUS_CHECK_FAILED": 2008,
	"PAYMENT_STATISTICS_FAILED":   2009,
	"INTEGRATION_ERROR":           3001,
	"TOKEN_REQUIRED":              4001,
	"INVALID_TOKEN_FORMAT":        4002,
	"INVALID_TOKEN":               4003,
	"TOKEN_EXPIRED":               4004,
	"INVALID_TOKEN_SIGNATURE":     4005,
	"TOKEN_NOT_ACTIVE":            4006,
	"TOKEN_BLACKLISTED":           4007,
	"MISSING_JWT_SECRET":          4008,
}

// Code returns the numeric error code published to API clients, 500 when unmapped.
func Code(key string) int {
	if c, ok := codes[key]; ok {
		return c
	}
	return http.StatusInternalServerError
}
