package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/rostersync/internal/shared"
)

// APIError is a non-2xx response from a remote API.
type APIError struct {
	Service    string
	Method     string
	Endpoint   string
	StatusCode int
	Code       string
	Message    string
}

func newAPIError(service, method, endpoint string, status int, body []byte) *APIError {
	e := &APIError{Service: service, Method: method, Endpoint: endpoint, StatusCode: status}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		e.Code = payload.Code
		for _, m := range []string{payload.Message, payload.Detail, payload.Error} {
			if m != "" {
				e.Message = m
				break
			}
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%s %s, status %d): %s", e.Service, e.Method, e.Endpoint, e.StatusCode, e.Message)
}

// Is maps status codes onto the shared sentinels so callers can use [errors.Is].
//
// Brevo reports an existing contact either as 409 or as 400 with code duplicate_parameter;
// both match [shared.ErrConflict].
func (e *APIError) Is(target error) bool {
	switch target {
	case shared.ErrAPIRequest:
		return true
	case shared.ErrConflict:
		return e.StatusCode == http.StatusConflict ||
			(e.StatusCode == http.StatusBadRequest && e.Code == "duplicate_parameter")
	case shared.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case shared.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case shared.ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// Retryable reports whether the request may succeed if sent again unchanged.
func (e *APIError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
