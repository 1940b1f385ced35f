package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// buildRouter wires routes for the storefront API.
func buildRouter(logger zerolog.Logger, deps Deps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Registry))

	h := &handlers{registry: deps.Registry}
	api := router.Group("/api/storefront", h.visitor)

	api.GET("/cart", h.getCart)
	api.DELETE("/cart", h.clearCart)
	api.POST("/cart/items", h.addItem)
	api.PATCH("/cart/items/:id", h.updateItem)
	api.DELETE("/cart/items/:id", h.removeItem)
	api.POST("/cart/items/:id/increment", h.stepQuantity(1))
	api.POST("/cart/items/:id/decrement", h.stepQuantity(-1))
	api.POST("/cart/bundles", h.addBundle)
	api.POST("/cart/email", h.emailCart)
	api.POST("/cart/merge", h.mergeCart)
	api.POST("/cart/promo-codes", h.addPromoCode)
	api.DELETE("/cart/promo-codes/:code", h.removePromoCode)
	api.POST("/cart/promo-codes/apply", h.applyPromoCodes)
	api.GET("/cart/related-products", h.relatedProducts)

	api.PUT("/profile", h.signIn)
	api.DELETE("/profile", h.signOut)

	api.GET("/checkout", h.getCheckout)
	api.POST("/checkout/welcome", h.submitWelcome)
	api.POST("/checkout/shipping", h.submitShipping)
	api.POST("/checkout/shipping-tab", h.selectShippingTab)
	api.POST("/checkout/payment-method", h.selectPaymentMethod)
	api.POST("/checkout/submit", h.submitOrder)
	api.POST("/checkout/edit/:step", h.editStep)
	api.DELETE("/checkout", h.resetCheckout)
	api.GET("/checkout/stores", h.listStores)

	return router
}
