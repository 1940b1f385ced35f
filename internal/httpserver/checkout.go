package httpserver

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/service/checkout"

	"github.com/gin-gonic/gin"
)

type welcomeRequest struct {
	Email string `json:"email"`
}

type shippingTabRequest struct {
	ShippingMethod string `json:"shipping_method"`
}

type paymentMethodRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *handlers) getCheckout(c *gin.Context) {
	writeCheckout(c, http.StatusOK, shopperFrom(c))
}

// checkoutAction runs one step transition and answers with the new state.
func checkoutAction(c *gin.Context, fn func() error) {
	s := shopperFrom(c)
	if err := fn(); err != nil {
		writeError(c, err, s.Checkout.Snapshot())
		return
	}
	writeCheckout(c, http.StatusOK, s)
}

func (h *handlers) submitWelcome(c *gin.Context) {
	var req welcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	checkoutAction(c, func() error {
		return s.Checkout.SubmitWelcome(c.Request.Context(), req.Email)
	})
}

func (h *handlers) submitShipping(c *gin.Context) {
	var req checkout.ShippingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	checkoutAction(c, func() error {
		return s.Checkout.SubmitShipping(c.Request.Context(), req)
	})
}

func (h *handlers) selectShippingTab(c *gin.Context) {
	var req shippingTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	checkoutAction(c, func() error {
		return s.Checkout.SelectShippingTab(req.ShippingMethod)
	})
}

func (h *handlers) selectPaymentMethod(c *gin.Context) {
	var req paymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	checkoutAction(c, func() error {
		return s.Checkout.SelectPaymentMethod(req.PaymentMethod)
	})
}

func (h *handlers) submitOrder(c *gin.Context) {
	s := shopperFrom(c)
	res, err := s.Checkout.SubmitPayment(c.Request.Context())
	if err != nil {
		writeError(c, err, s.Checkout.Snapshot())
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"order":         res.Order,
		"redirect_url":  res.RedirectURL,
		"checkout":      s.Checkout.Snapshot(),
		"notifications": s.Toasts.Drain(),
	})
}

func (h *handlers) editStep(c *gin.Context) {
	step, ok := checkout.ParseStep(c.Param("step"))
	if !ok {
		writeError(c, domain.ErrNotFound, nil)
		return
	}
	s := shopperFrom(c)
	checkoutAction(c, func() error {
		return s.Checkout.Edit(step)
	})
}

func (h *handlers) resetCheckout(c *gin.Context) {
	s := shopperFrom(c)
	s.Checkout.Reset()
	writeCheckout(c, http.StatusOK, s)
}

func (h *handlers) listStores(c *gin.Context) {
	s := shopperFrom(c)
	stores, err := s.Checkout.Stores(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"store_addresses": stores})
}
