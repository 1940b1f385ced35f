package domain

import "time"

type CartStatus string

const (
	CartStatusActive     CartStatus = "active"
	CartStatusExpired    CartStatus = "expired"
	CartStatusCheckedOut CartStatus = "checked_out"
	CartStatusEmailed    CartStatus = "emailed"
	CartStatusAbandoned  CartStatus = "abandoned"
)

type CartType string

const (
	CartTypeAuthenticated CartType = "authenticated"
	CartTypeAnonymous     CartType = "anonymous"
)

// Cart mirrors the backend cart aggregate. Totals are server computed and
// never recalculated locally.
type Cart struct {
	ID            string                 `json:"id"`
	SessionID     string                 `json:"session_id"`
	UserID        *string                `json:"user_id,omitempty"`
	Status        CartStatus             `json:"status"`
	CartType      CartType               `json:"cart_type"`
	Items         []CartItem             `json:"items"`
	Subtotal      Amount                 `json:"subtotal"`
	DiscountTotal Amount                 `json:"discount_total"`
	Total         Amount                 `json:"total"`
	Currency      string                 `json:"currency"`
	Promotions    []Promotion            `json:"promotions"`
	FreeShipping  bool                   `json:"free_shipping"`
	ExpiresAt     time.Time              `json:"expires_at"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type CartItem struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	ProductVariantID *string   `json:"product_variant_id,omitempty"`
	Quantity         int       `json:"quantity"`
	CurrentPrice     Amount    `json:"current_price"`
	OriginalPrice    Amount    `json:"original_price"`
	ProductName      string    `json:"product_name"`
	ProductImageURL  *string   `json:"product_image_url,omitempty"`
	LineTotal        Amount    `json:"line_total"`
	ExpiresAt        time.Time `json:"expires_at"`
	PriceLocked      *bool     `json:"price_locked,omitempty"`
}

// TotalQuantity sums line quantities.
func (c *Cart) TotalQuantity() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// FindItem returns the line with the given id.
func (c *Cart) FindItem(itemID string) (CartItem, bool) {
	if c == nil {
		return CartItem{}, false
	}
	for _, item := range c.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return CartItem{}, false
}

type Promotion struct {
	ID             string `json:"id"`
	Code           string `json:"code,omitempty"`
	Name           string `json:"name"`
	PromotionType  string `json:"promotion_type"`
	DiscountValue  Amount `json:"discount_value,omitempty"`
	DiscountAmount Amount `json:"discount_amount,omitempty"`
}

// CartItemView is the display projection of a CartItem, rebuilt wholesale on
// every cart refresh.
type CartItemView struct {
	CartItem
	Name         string `json:"name"`
	Image        string `json:"image,omitempty"`
	InStock      bool   `json:"in_stock"`
	MaxQuantity  int    `json:"max_quantity"`
	PriceExpired bool   `json:"price_expired"`
}

type CartSummary struct {
	Subtotal     float64 `json:"subtotal"`
	FreeShipping bool    `json:"free_shipping"`
	Tax          float64 `json:"tax"`
	Discount     float64 `json:"discount"`
	Total        float64 `json:"total"`
	Currency     string  `json:"currency"`
}

type AddItemInput struct {
	ProductID        string  `json:"product_id"`
	ProductVariantID *string `json:"product_variant_id,omitempty"`
	Quantity         int     `json:"quantity"`
}

type EmailCartRequest struct {
	Email               string `json:"email"`
	CreateAccountPrompt *bool  `json:"create_account_prompt,omitempty"`
}

type EmailCartResponse struct {
	ID            string    `json:"id"`
	CartID        string    `json:"cart_id"`
	Email         string    `json:"email"`
	SentAt        time.Time `json:"sent_at"`
	AccessToken   string    `json:"access_token"`
	ExpiresAt     time.Time `json:"expires_at"`
	RecipientType string    `json:"recipient_type"`
}

type GuestEmailResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Cart    *Cart  `json:"cart,omitempty"`
}

type RelatedProduct struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug,omitempty"`
	Price    Amount `json:"price"`
	ImageURL string `json:"image_url,omitempty"`
}
