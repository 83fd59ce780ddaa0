package server

import (
	"errors"
	"net/http"

	consentdomain "github.com/arrivohq/arrivo/internal/consent/domain"
	"github.com/gin-gonic/gin"
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Code }

var (
	ErrUnauthorized = &apiError{
		Status:  http.StatusUnauthorized,
		Code:    "unauthorized",
		Message: "missing or invalid credentials",
	}
	ErrNotFound = &apiError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: "resource not found",
	}
	ErrServiceUnavailable = &apiError{
		Status:  http.StatusServiceUnavailable,
		Code:    "service_unavailable",
		Message: "service is not configured",
	}
	ErrTooManyRequests = &apiError{
		Status:  http.StatusTooManyRequests,
		Code:    "too_many_requests",
		Message: "rate limit exceeded",
	}
)

func invalidRequestError() *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "request body could not be parsed",
	}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

// AbortWithError maps domain errors onto HTTP responses. Unknown errors
// become an opaque 500; their detail stays in the logs.
func AbortWithError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	switch {
	case errors.Is(err, consentdomain.ErrConsentNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": &apiError{
			Code:    "consent_not_found",
			Message: "no consent record for appointment",
		}})
	case errors.Is(err, consentdomain.ErrInvalidConsent):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": &apiError{
			Code:    "invalid_consent",
			Message: "consent record is invalid",
		}})
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": &apiError{
			Code:    "internal_error",
			Message: "internal server error",
		}})
	}
}
