// Package gatewaytest provides an in-memory cart backend speaking the wire
// protocol the gateway consumes, for tests of the layers above it.
package gatewaytest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	// UnitPrice is charged for every product the fake backend sells.
	UnitPrice = 100000
	// Stock caps every line's quantity.
	Stock = 10
	// PromoCode is the only code the backend accepts; it takes 10% off.
	PromoCode = "SALE10"

	sessionHeader = "X-Session-ID"
)

type Backend struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart // by session id
	shared   map[string]string       // access token -> session id
	orders   []domain.CreateOrderInput
	calls    map[string]int
	nextID   int
	sessions map[string]bool

	// OrderStatus, when set, makes POST /orders fail with that status.
	OrderStatus int

	server *httptest.Server
}

// New starts the fake backend. Close it with Close.
func New() *Backend {
	b := &Backend{
		carts:    map[string]*domain.Cart{},
		shared:   map[string]string{},
		calls:    map[string]int{},
		sessions: map[string]bool{},
	}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(b.count)
	r.POST("/cart_sessions", b.createSession)
	r.GET("/cart_sessions/:id/validate", b.validateSession)
	r.GET("/carts", b.withSession(b.getCart))
	r.POST("/carts", b.withSession(b.createCart))
	r.POST("/carts/add_item", b.withSession(b.addItem))
	r.POST("/carts/add_bundle", b.withSession(b.addBundle))
	r.PUT("/carts/update_item", b.withSession(b.updateItem))
	r.DELETE("/carts/remove_item", b.withSession(b.removeItem))
	r.POST("/carts/email", b.withSession(b.emailCart))
	r.POST("/carts/merge", b.withSession(b.merge))
	r.PUT("/carts/update_guest_email", b.withSession(b.updateGuestEmail))
	r.POST("/carts/apply_promotion", b.withSession(b.applyPromotion))
	r.GET("/categories/related_products", b.relatedProducts)
	r.POST("/orders", b.withSession(b.createOrder))
	r.GET("/store_addresses", b.storeAddresses)
	b.server = httptest.NewServer(r)
	return b
}

func (b *Backend) URL() string { return b.server.URL }

func (b *Backend) Close() { b.server.Close() }

// Calls reports how often "METHOD /path" was hit.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

func (b *Backend) Orders() []domain.CreateOrderInput {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.CreateOrderInput(nil), b.orders...)
}

func (b *Backend) count(c *gin.Context) {
	b.mu.Lock()
	b.calls[c.Request.Method+" "+c.FullPath()]++
	b.mu.Unlock()
	c.Next()
}

func (b *Backend) withSession(h func(c *gin.Context, sessionID string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(sessionHeader)
		b.mu.Lock()
		known := b.sessions[id]
		b.mu.Unlock()
		if !known {
			c.JSON(http.StatusGone, gin.H{"message": "session expired"})
			return
		}
		h(c, id)
	}
}

func (b *Backend) createSession(c *gin.Context) {
	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("sess-%d", b.nextID)
	b.sessions[id] = true
	cart := b.newCartLocked(id)
	b.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{
		"session_id": id,
		"cart":       cart,
		"expires_at": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	})
}

func (b *Backend) validateSession(c *gin.Context) {
	b.mu.Lock()
	valid := b.sessions[c.Param("id")]
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (b *Backend) newCartLocked(sessionID string) *domain.Cart {
	cart := &domain.Cart{
		ID:        "cart-" + strings.TrimPrefix(sessionID, "sess-"),
		SessionID: sessionID,
		Status:    domain.CartStatusActive,
		CartType:  domain.CartTypeAnonymous,
		Currency:  "VND",
		Items:     []domain.CartItem{},
		ExpiresAt: time.Now().Add(24 * time.Hour).UTC(),
	}
	recalc(cart)
	b.carts[sessionID] = cart
	return cart
}

func (b *Backend) getCart(c *gin.Context, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cart, ok := b.carts[sessionID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "cart not found"})
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (b *Backend) createCart(c *gin.Context, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusCreated, b.newCartLocked(sessionID))
}

func (b *Backend) cartLocked(sessionID string) *domain.Cart {
	cart, ok := b.carts[sessionID]
	if !ok {
		cart = b.newCartLocked(sessionID)
	}
	return cart
}

func addLine(cart *domain.Cart, productID string, qty int) {
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = min(cart.Items[i].Quantity+qty, Stock)
			return
		}
	}
	cart.Items = append(cart.Items, domain.CartItem{
		ID:            "line-" + productID,
		ProductID:     productID,
		Quantity:      min(qty, Stock),
		CurrentPrice:  domain.Amount(strconv.Itoa(UnitPrice) + ".0"),
		OriginalPrice: domain.Amount(strconv.Itoa(UnitPrice) + ".0"),
		ProductName:   "Product " + productID,
		ExpiresAt:     time.Now().Add(time.Hour).UTC(),
	})
}

// recalc prices the cart the way the real backend does: string amounts.
func recalc(cart *domain.Cart) {
	subtotal := 0
	for i := range cart.Items {
		line := cart.Items[i].Quantity * UnitPrice
		cart.Items[i].LineTotal = domain.Amount(strconv.Itoa(line) + ".0")
		subtotal += line
	}
	discount := 0
	for _, p := range cart.Promotions {
		if p.Code == PromoCode {
			discount = subtotal / 10
		}
	}
	cart.Subtotal = domain.Amount(strconv.Itoa(subtotal) + ".0")
	cart.DiscountTotal = domain.Amount(strconv.Itoa(discount) + ".0")
	cart.Total = domain.Amount(strconv.Itoa(subtotal-discount) + ".0")
}

func (b *Backend) addItem(c *gin.Context, sessionID string) {
	var in domain.AddItemInput
	if err := c.ShouldBindJSON(&in); err != nil || in.ProductID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "product_id required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cart := b.cartLocked(sessionID)
	addLine(cart, in.ProductID, in.Quantity)
	recalc(cart)
	c.JSON(http.StatusOK, cart)
}

func (b *Backend) addBundle(c *gin.Context, sessionID string) {
	var in struct {
		PromotionID string `json:"promotion_id"`
	}
	_ = c.ShouldBindJSON(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	cart := b.cartLocked(sessionID)
	addLine(cart, in.PromotionID+"-a", 1)
	addLine(cart, in.PromotionID+"-b", 1)
	recalc(cart)
	c.JSON(http.StatusOK, cart)
}

func (b *Backend) updateItem(c *gin.Context, sessionID string) {
	var in struct {
		ItemID   string `json:"item_id"`
		Quantity int    `json:"quantity"`
	}
	_ = c.ShouldBindJSON(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	cart := b.cartLocked(sessionID)
	for i := range cart.Items {
		if cart.Items[i].ID == in.ItemID {
			cart.Items[i].Quantity = min(in.Quantity, Stock)
			recalc(cart)
			c.JSON(http.StatusOK, gin.H{"item": cart.Items[i]})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "item not found"})
}

func (b *Backend) removeItem(c *gin.Context, sessionID string) {
	var in struct {
		ItemID string `json:"item_id"`
	}
	_ = c.ShouldBindJSON(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	cart := b.cartLocked(sessionID)
	items := cart.Items[:0]
	for _, it := range cart.Items {
		if it.ID != in.ItemID {
			items = append(items, it)
		}
	}
	cart.Items = items
	recalc(cart)
	c.Status(http.StatusNoContent)
}

func (b *Backend) emailCart(c *gin.Context, sessionID string) {
	var in domain.EmailCartRequest
	_ = c.ShouldBindJSON(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	cart := b.cartLocked(sessionID)
	if len(cart.Items) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Cart is empty"})
		return
	}
	token := "share-" + cart.ID
	b.shared[token] = sessionID
	cart.Status = domain.CartStatusEmailed
	now := time.Now().UTC()
	c.JSON(http.StatusCreated, domain.EmailCartResponse{
		ID:            "email-" + cart.ID,
		CartID:        cart.ID,
		Email:         in.Email,
		SentAt:        now,
		AccessToken:   token,
		ExpiresAt:     now.Add(7 * 24 * time.Hour),
		RecipientType: "guest",
	})
}

func (b *Backend) merge(c *gin.Context, sessionID string) {
	var in struct {
		AccessToken string `json:"access_token"`
	}
	_ = c.ShouldBindJSON(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	owner, ok := b.shared[in.AccessToken]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "shared cart not found"})
		return
	}
	cart := b.cartLocked(sessionID)
	if owner != sessionID {
		for _, it := range b.carts[owner].Items {
			addLine(cart, it.ProductID, it.Quantity)
		}
	}
	recalc(cart)
	c.JSON(http.StatusOK, cart)
}

func (b *Backend) updateGuestEmail(c *gin.Context, sessionID string) {
	var in struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&in)
	c.JSON(http.StatusOK, domain.GuestEmailResult{Success: in.Email != "", Message: "ok"})
}

func (b *Backend) applyPromotion(c *gin.Context, sessionID string) {
	var in struct {
		Codes []string `json:"promotion_codes"`
	}
	_ = c.ShouldBindJSON(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	cart := b.cartLocked(sessionID)
	for _, code := range in.Codes {
		if code != PromoCode {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "invalid promotion code", "details": gin.H{"code": code}})
			return
		}
	}
	cart.Promotions = []domain.Promotion{{ID: "promo-1", Code: PromoCode, Name: "10% off", PromotionType: "percentage", DiscountValue: "10"}}
	recalc(cart)
	c.JSON(http.StatusOK, cart)
}

func (b *Backend) relatedProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"related_products": []domain.RelatedProduct{
		{ID: "p-9", Name: "Tất cổ cao", Slug: "tat-co-cao", Price: "49000.0"},
	}})
}

func (b *Backend) createOrder(c *gin.Context, sessionID string) {
	var in domain.CreateOrderInput
	_ = c.ShouldBindJSON(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OrderStatus != 0 {
		c.JSON(b.OrderStatus, gin.H{"message": http.StatusText(b.OrderStatus)})
		return
	}
	b.orders = append(b.orders, in)
	order := domain.Order{
		ID:          fmt.Sprintf("order-%d", len(b.orders)),
		OrderNumber: fmt.Sprintf("SF-%04d", len(b.orders)),
		Status:      "pending",
		Currency:    in.Currency,
		CreatedAt:   time.Now().UTC(),
	}
	if cart, ok := b.carts[sessionID]; ok {
		order.Total = cart.Total
		b.newCartLocked(sessionID)
	}
	if in.PaymentMethod == "online" || in.PaymentMethod == "installment" {
		order.PaymentURL = "https://pay.example.vn/" + order.ID
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

func (b *Backend) storeAddresses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"store_addresses": []domain.StoreAddress{
		{ID: "store-1", Name: "Quận 1", Address: "1 Nguyễn Huệ", City: "Hồ Chí Minh"},
	}})
}
