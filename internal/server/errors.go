package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	addondomain "github.com/smallbiznis/entitlements/internal/addon/domain"
	"github.com/smallbiznis/entitlements/internal/catalog"
	entitlementdomain "github.com/smallbiznis/entitlements/internal/entitlement/domain"
	overridedomain "github.com/smallbiznis/entitlements/internal/override/domain"
	teamdomain "github.com/smallbiznis/entitlements/internal/team/domain"
	"github.com/smallbiznis/entitlements/internal/teamlock"
	usagedomain "github.com/smallbiznis/entitlements/internal/usage/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Details map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	// Guard failures carry a user-facing upgrade prompt.
	var notEntitled *entitlementdomain.NotEntitledError
	if errors.As(err, &notEntitled) {
		return http.StatusForbidden, errorPayload{
			Type:    "not_entitled",
			Message: notEntitled.Error(),
			Details: map[string]any{
				"feature_key": notEntitled.FeatureKey,
				"plan_name":   notEntitled.PlanName,
			},
		}
	}
	var exceeded *entitlementdomain.LimitExceededError
	if errors.As(err, &exceeded) {
		return http.StatusForbidden, errorPayload{
			Type:    "limit_exceeded",
			Message: exceeded.Error(),
			Details: map[string]any{
				"limit_key": exceeded.LimitKey,
				"plan_name": exceeded.PlanName,
				"limit":     exceeded.Limit,
				"remaining": exceeded.Remaining,
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, usagedomain.ErrStorageConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, teamlock.ErrLockTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if payload.Type != "internal_error" {
		code = strings.TrimSpace(sentinelCode(err))
	}
	return payload.Type, code
}

func sentinelCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, entitlementdomain.ErrInvalidTeam),
		errors.Is(err, teamdomain.ErrInvalidTeam),
		errors.Is(err, teamdomain.ErrInvalidName),
		errors.Is(err, teamdomain.ErrInvalidPageToken),
		errors.Is(err, usagedomain.ErrInvalidTeam),
		errors.Is(err, usagedomain.ErrInvalidAmount),
		errors.Is(err, usagedomain.ErrInvalidLimit),
		errors.Is(err, addondomain.ErrInvalidTeam),
		errors.Is(err, addondomain.ErrInvalidQuantity),
		errors.Is(err, addondomain.ErrInvalidExpiry):
		return true
	case isOverrideValidationError(err):
		return true
	default:
		return false
	}
}

func isOverrideValidationError(err error) bool {
	switch {
	case errors.Is(err, overridedomain.ErrInvalidTeam),
		errors.Is(err, overridedomain.ErrInvalidType),
		errors.Is(err, overridedomain.ErrInvalidValue),
		errors.Is(err, overridedomain.ErrInvalidReason),
		errors.Is(err, overridedomain.ErrInvalidActor),
		errors.Is(err, overridedomain.ErrInvalidExpiry),
		errors.Is(err, overridedomain.ErrInvalidKey):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, teamdomain.ErrTeamNotFound),
		errors.Is(err, addondomain.ErrAddonNotFound),
		errors.Is(err, catalog.ErrPlanNotFound),
		errors.Is(err, catalog.ErrAddonNotFound),
		errors.Is(err, catalog.ErrUnknownCatalogKey),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return sentinelCode(err)
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
