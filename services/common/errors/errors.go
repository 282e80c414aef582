package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code    int               `json:"code"`
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind, so a customised copy still matches its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a new Error
func New(code int, kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Wrap copies base and attaches err as the cause.
func Wrap(base *Error, err error) *Error {
	return &Error{Code: base.Code, Kind: base.Kind, Message: base.Message, Fields: base.Fields, Err: err}
}

// WithMessage copies base with a different user-facing message.
func WithMessage(base *Error, message string, err error) *Error {
	return &Error{Code: base.Code, Kind: base.Kind, Message: message, Fields: base.Fields, Err: err}
}

// Validation builds a validation error carrying one message per offending field.
func Validation(fields map[string]string) *Error {
	return &Error{
		Code:    ErrValidation.Code,
		Kind:    ErrValidation.Kind,
		Message: ErrValidation.Message,
		Fields:  fields,
	}
}

// Message returns the user-facing message of err, or fallback when err carries none.
func Message(err error, fallback string) string {
	var appErr *Error
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// Common error types
var (
	ErrBadRequest   = New(http.StatusBadRequest, "bad_request", "Bad request", nil)
	ErrUnauthorized = New(http.StatusUnauthorized, "unauthorized", "Unauthorized", nil)
	ErrNotFound     = New(http.StatusNotFound, "not_found", "Not found", nil)
	ErrUpstream     = New(http.StatusBadGateway, "upstream", "Upstream request failed", nil)
	ErrInternal     = New(http.StatusInternalServerError, "internal", "Internal server error", nil)
)

// Cart and checkout error types
var (
	ErrValidation         = New(http.StatusBadRequest, "validation", "Please correct the highlighted fields", nil)
	ErrStockExceeded      = New(http.StatusConflict, "stock_exceeded", "Requested quantity exceeds available stock", nil)
	ErrInvalidQuantity    = New(http.StatusBadRequest, "invalid_quantity", "Quantity must be at least 1", nil)
	ErrItemNotFound       = New(http.StatusNotFound, "item_not_found", "Item is not in your cart", nil)
	ErrSyncFailure        = New(http.StatusBadGateway, "sync_failure", "Could not update your cart", nil)
	ErrAuthRequired       = New(http.StatusUnauthorized, "auth_required", "Please log in to continue", nil)
	ErrCheckoutSubmission = New(http.StatusBadGateway, "checkout_submission", "Could not place your order. Please try again", nil)
	ErrCheckoutInProgress = New(http.StatusConflict, "checkout_in_progress", "Your order is already being submitted", nil)
	ErrEmptyCart          = New(http.StatusBadRequest, "empty_cart", "Your cart is empty", nil)
	ErrRedirectBlocked    = New(http.StatusOK, "redirect_blocked", "Open the link to continue your order", nil)
)

// From returns err as an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(ErrInternal, err)
}

// Error middleware for Gin
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := From(c.Errors.Last().Err)
		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
