package httpserver

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/notify"
	"storefront/internal/service/cart"
	"storefront/internal/service/checkout"
	"storefront/internal/shopper"

	"github.com/gin-gonic/gin"
)

type cartResponse struct {
	Cart          cart.State            `json:"cart"`
	TotalItems    int                   `json:"total_items"`
	PromoCodes    []string              `json:"promo_codes"`
	Notifications []notify.Notification `json:"notifications"`
}

type checkoutResponse struct {
	Checkout      checkout.State        `json:"checkout"`
	Notifications []notify.Notification `json:"notifications"`
}

func writeCart(c *gin.Context, status int, s *shopper.Shopper) {
	c.JSON(status, cartResponse{
		Cart:          s.Cart.Snapshot(),
		TotalItems:    s.Counter.TotalItems(c.Request.Context()),
		PromoCodes:    s.Promo.Codes(),
		Notifications: s.Toasts.Drain(),
	})
}

func writeCheckout(c *gin.Context, status int, s *shopper.Shopper) {
	c.JSON(status, checkoutResponse{
		Checkout:      s.Checkout.Snapshot(),
		Notifications: s.Toasts.Drain(),
	})
}

// statusFor maps an action error onto an HTTP status.
func statusFor(err error) int {
	var verr *checkout.ValidationError
	var apiErr *domain.APIError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, cart.ErrInvalidPromoCode),
		errors.Is(err, cart.ErrNoPromoCodes):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStepLocked), errors.Is(err, domain.ErrSubmitInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400:
		return apiErr.StatusCode
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with the state the shopper should render next.
func writeError(c *gin.Context, err error, state interface{}) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var verr *checkout.ValidationError
	var oerr *checkout.OrderError
	var perr *cart.PromoCodeError
	switch {
	case errors.As(err, &verr):
		body["error"] = "validation_failed"
		body["fields"] = verr.Fields
	case errors.As(err, &perr):
		body["error"] = "validation_failed"
		body["fields"] = map[string]string{"code": perr.Message}
	case errors.As(err, &oerr):
		body["error"] = oerr.Message
		body["order_error"] = oerr
	}
	if state != nil {
		body["state"] = state
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
}
