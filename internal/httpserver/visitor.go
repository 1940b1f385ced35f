package httpserver

import (
	"net/http"

	"storefront/internal/gateway"
	"storefront/internal/shopper"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	visitorCookie = "sf_visitor"
	visitorMaxAge = 365 * 24 * 60 * 60
	shopperCtxKey = "shopper"
)

type handlers struct {
	registry *shopper.Registry
}

// visitor resolves the sf_visitor cookie, minting one when missing or
// malformed, and attaches the visitor's Shopper to the request. Crawlers get
// no cookie.
func (h *handlers) visitor(c *gin.Context) {
	ua := c.Request.UserAgent()
	id, err := c.Cookie(visitorCookie)
	if !gateway.IsBot(ua) && (err != nil || uuid.Validate(id) != nil) {
		id = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(visitorCookie, id, visitorMaxAge, "/", "", c.Request.TLS != nil, true)
	}
	s := h.registry.Get(c.Request.Context(), id, shopper.Client{
		UserAgent:   ua,
		Fingerprint: gateway.Fingerprint(c.Request),
	})
	c.Set(shopperCtxKey, s)
	c.Next()
}

func shopperFrom(c *gin.Context) *shopper.Shopper {
	return c.MustGet(shopperCtxKey).(*shopper.Shopper)
}
