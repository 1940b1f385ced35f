package checkout

import (
	"errors"
	"fmt"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/i18n"
)

type OrderErrorKind string

const (
	KindConflict   OrderErrorKind = "conflict"
	KindValidation OrderErrorKind = "validation"
	KindCartGone   OrderErrorKind = "cart_gone"
	KindGeneric    OrderErrorKind = "generic"
)

// OrderError is a classified order creation failure.
type OrderError struct {
	Kind    OrderErrorKind `json:"kind"`
	Message string         `json:"message"`
	Detail  string         `json:"detail,omitempty"`
	Details interface{}    `json:"details,omitempty"`
	Status  int            `json:"status,omitempty"`
	Err     error          `json:"-"`
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order %s: %s", e.Kind, e.Message)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

func classifyOrderError(err error, tr *i18n.Translator) *OrderError {
	oe := &OrderError{Kind: KindGeneric, Message: tr.T(i18n.OrderGeneric), Err: err}
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		return oe
	}
	oe.Status = apiErr.StatusCode
	switch apiErr.StatusCode {
	case http.StatusConflict:
		oe.Kind = KindConflict
		oe.Message = tr.T(i18n.OrderConflict)
		oe.Detail = apiErr.Message
	case http.StatusUnprocessableEntity:
		oe.Kind = KindValidation
		oe.Message = tr.T(i18n.OrderValidationFailed)
		oe.Details = apiErr.Details
	case http.StatusNotFound:
		oe.Kind = KindCartGone
		oe.Message = tr.T(i18n.OrderCartGone)
	}
	return oe
}
