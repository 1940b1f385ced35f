package httpserver

import (
	"net/http"

	"storefront/internal/domain"

	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	ProductID        string  `json:"product_id" binding:"required"`
	ProductVariantID *string `json:"product_variant_id"`
	Quantity         int     `json:"quantity" binding:"omitempty,min=1"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type bundleRequest struct {
	PromotionID string `json:"promotion_id" binding:"required"`
}

type emailCartRequest struct {
	Email               string `json:"email"`
	CreateAccountPrompt bool   `json:"create_account_prompt"`
}

type mergeRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
}

type promoCodeRequest struct {
	Code string `json:"code"`
}

func (h *handlers) getCart(c *gin.Context) {
	s := shopperFrom(c)
	s.Cart.InitializeCart(c.Request.Context(), c.Query("silent") == "true")
	writeCart(c, http.StatusOK, s)
}

func (h *handlers) clearCart(c *gin.Context) {
	s := shopperFrom(c)
	s.ClearCart(c.Request.Context())
	writeCart(c, http.StatusOK, s)
}

// cartAction runs one store mutation and answers with the refreshed state.
func cartAction(c *gin.Context, fn func() error) {
	s := shopperFrom(c)
	if err := fn(); err != nil {
		writeError(c, err, s.Cart.Snapshot())
		return
	}
	writeCart(c, http.StatusOK, s)
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	cartAction(c, func() error {
		return s.Cart.AddItem(c.Request.Context(), domain.AddItemInput{
			ProductID:        req.ProductID,
			ProductVariantID: req.ProductVariantID,
			Quantity:         req.Quantity,
		})
	})
}

func (h *handlers) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	cartAction(c, func() error {
		return s.Cart.UpdateItem(c.Request.Context(), c.Param("id"), *req.Quantity)
	})
}

func (h *handlers) removeItem(c *gin.Context) {
	s := shopperFrom(c)
	cartAction(c, func() error {
		return s.Cart.RemoveItem(c.Request.Context(), c.Param("id"))
	})
}

// stepQuantity moves a line's displayed quantity at once and leaves the
// backend commit to the line's debounced control.
func (h *handlers) stepQuantity(delta int) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := shopperFrom(c)
		ctl, err := s.Control(c.Param("id"))
		if err != nil {
			writeError(c, err, nil)
			return
		}
		var displayed int
		if delta > 0 {
			displayed = ctl.Increment()
		} else {
			displayed = ctl.Decrement()
		}
		c.JSON(http.StatusAccepted, gin.H{
			"item_id":       c.Param("id"),
			"displayed":     displayed,
			"committed":     ctl.Committed(),
			"pending":       ctl.Pending(),
			"can_increment": ctl.CanIncrement(),
			"can_decrement": ctl.CanDecrement(),
		})
	}
}

func (h *handlers) addBundle(c *gin.Context) {
	var req bundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	cartAction(c, func() error {
		return s.Cart.AddBundle(c.Request.Context(), req.PromotionID)
	})
}

func (h *handlers) emailCart(c *gin.Context) {
	var req emailCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	link, err := s.SaveForLater(c.Request.Context(), req.Email, req.CreateAccountPrompt)
	if err != nil {
		writeError(c, err, s.Cart.Snapshot())
		return
	}
	c.JSON(http.StatusOK, gin.H{"share_url": link, "cart": s.Cart.Snapshot()})
}

func (h *handlers) mergeCart(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	cartAction(c, func() error {
		return s.Cart.MergeSharedCart(c.Request.Context(), req.AccessToken)
	})
}

func (h *handlers) addPromoCode(c *gin.Context) {
	var req promoCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	added, err := s.Promo.Add(req.Code)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"promo_codes": s.Promo.Codes()})
}

func (h *handlers) removePromoCode(c *gin.Context) {
	s := shopperFrom(c)
	s.Promo.Remove(c.Param("code"))
	c.JSON(http.StatusOK, gin.H{"promo_codes": s.Promo.Codes()})
}

func (h *handlers) applyPromoCodes(c *gin.Context) {
	s := shopperFrom(c)
	cartAction(c, func() error {
		return s.Promo.Apply(c.Request.Context())
	})
}

func (h *handlers) relatedProducts(c *gin.Context) {
	s := shopperFrom(c)
	products, err := s.Cart.RelatedProducts(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"related_products": products})
}

type profileRequest struct {
	ID          string `json:"id" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

func (h *handlers) signIn(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s := shopperFrom(c)
	profile := domain.UserProfile{ID: req.ID, Email: req.Email, Name: req.Name, PhoneNumber: req.PhoneNumber}
	if err := s.SignIn(c.Request.Context(), profile); err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *handlers) signOut(c *gin.Context) {
	s := shopperFrom(c)
	if err := s.SignOut(c.Request.Context()); err != nil {
		writeError(c, err, nil)
		return
	}
	writeCart(c, http.StatusOK, s)
}
