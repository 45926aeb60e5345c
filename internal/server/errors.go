package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/partnersync/internal/account/domain"
	apikeydomain "github.com/smallbiznis/partnersync/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/partnersync/internal/audit/domain"
	"github.com/smallbiznis/partnersync/internal/authorization"
	"github.com/smallbiznis/partnersync/internal/credential/vault"
	eventprocdomain "github.com/smallbiznis/partnersync/internal/eventprocessor/domain"
	"github.com/smallbiznis/partnersync/internal/partnerapi"
	webhookdomain "github.com/smallbiznis/partnersync/internal/webhook/domain"
	eventdomain "github.com/smallbiznis/partnersync/internal/webhookevent/domain"
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
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
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

		var rejection *webhookdomain.Rejection
		if errors.As(lastErr.Err, &rejection) && rejection.RetryAfter > 0 {
			seconds := int(rejection.RetryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
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

// classifyErrorForLog reports the response type and code of err for request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var rejection *webhookdomain.Rejection
	if errors.As(err, &rejection) {
		return mapRejection(rejection)
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

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, apikeydomain.ErrInvalidKey):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, accountdomain.ErrAlreadyExists),
		errors.Is(err, accountdomain.ErrAlreadyCancelled),
		errors.Is(err, eventdomain.ErrNotRequeuable),
		errors.Is(err, eventprocdomain.ErrBatchInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, accountdomain.ErrMissingAPIKey),
		errors.Is(err, accountdomain.ErrCallbackNotConfigured):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	case errors.Is(err, partnerapi.ErrPartnerRequest):
		return http.StatusBadGateway, errorPayload{
			Type:    "partner_error",
			Message: "partner request failed",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, eventprocdomain.ErrStoreUnavailable),
		errors.Is(err, eventprocdomain.ErrLockUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, vault.ErrCrypto):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// mapRejection keeps the webhook error body free of anything that would
// help enumerate accounts.
func mapRejection(r *webhookdomain.Rejection) (int, errorPayload) {
	switch r.Kind {
	case webhookdomain.RejectUnauthenticated:
		return http.StatusUnauthorized, errorPayload{Type: "unauthenticated", Message: "unauthenticated"}
	case webhookdomain.RejectAmbiguousCredential:
		return http.StatusForbidden, errorPayload{Type: "ambiguous_credential", Message: "credential matches more than one account"}
	case webhookdomain.RejectBadPayload:
		msg := strings.TrimSpace(r.Message)
		if msg == "" {
			msg = "invalid payload"
		}
		return http.StatusBadRequest, errorPayload{Type: "bad_payload", Message: msg}
	case webhookdomain.RejectRateLimited:
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "storage_failure", Message: "event could not be stored"}
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, eventprocdomain.ErrBatchInProgress):
		return "a batch is already running"
	case errors.Is(err, eventdomain.ErrNotRequeuable):
		return "event is not in ERROR status"
	case errors.Is(err, accountdomain.ErrAlreadyExists):
		return "account already exists"
	case errors.Is(err, accountdomain.ErrAlreadyCancelled):
		return "account is already cancelled"
	default:
		return "conflict"
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
		errors.Is(err, accountdomain.ErrInvalidRequest),
		errors.Is(err, accountdomain.ErrInvalidID),
		errors.Is(err, accountdomain.ErrInvalidDocument),
		errors.Is(err, eventdomain.ErrInvalidStatus),
		errors.Is(err, eventdomain.ErrInvalidID),
		errors.Is(err, apikeydomain.ErrInvalidName),
		errors.Is(err, apikeydomain.ErrInvalidRole),
		errors.Is(err, apikeydomain.ErrInvalidKeyID),
		errors.Is(err, auditdomain.ErrInvalidLimit):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, eventdomain.ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, accountdomain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, accountdomain.ErrInvalidID):
		return accountdomain.ErrInvalidID.Error()
	case errors.Is(err, accountdomain.ErrInvalidDocument):
		return accountdomain.ErrInvalidDocument.Error()
	case errors.Is(err, eventdomain.ErrInvalidStatus):
		return eventdomain.ErrInvalidStatus.Error()
	case errors.Is(err, eventdomain.ErrInvalidID):
		return eventdomain.ErrInvalidID.Error()
	default:
		return err.Error()
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
