package cart

import (
	"time"

	"storefront/internal/domain"
)

const (
	defaultCurrency    = "VND"
	defaultMaxQuantity = 99
)

var nowFunc = time.Now

// deriveItems rebuilds the display projection of every line.
func deriveItems(cart *domain.Cart, now time.Time) []domain.CartItemView {
	if cart == nil {
		return []domain.CartItemView{}
	}
	items := make([]domain.CartItemView, 0, len(cart.Items))
	for _, item := range cart.Items {
		view := domain.CartItemView{
			CartItem:     item,
			Name:         item.ProductName,
			InStock:      true,
			MaxQuantity:  defaultMaxQuantity,
			PriceExpired: !item.ExpiresAt.IsZero() && item.ExpiresAt.Before(now),
		}
		if item.ProductImageURL != nil {
			view.Image = *item.ProductImageURL
		}
		items = append(items, view)
	}
	return items
}

// summarize parses the server's string amounts. The total is taken from the
// server when present, otherwise subtotal minus discount.
func summarize(cart *domain.Cart) domain.CartSummary {
	if cart == nil {
		return domain.CartSummary{Currency: defaultCurrency}
	}
	subtotal := cart.Subtotal.FloatOrZero()
	discount := cart.DiscountTotal.FloatOrZero()
	total, ok := cart.Total.Float()
	if !ok {
		total = subtotal - discount
	}
	currency := cart.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return domain.CartSummary{
		Subtotal:     subtotal,
		FreeShipping: cart.FreeShipping,
		Discount:     discount,
		Total:        total,
		Currency:     currency,
	}
}
