package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain"
)

// BotSessionID is the constant session id handed to crawler traffic.
const BotSessionID = "bot-session"

var botSignatures = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider", "yandexbot",
	"sogou", "exabot", "facebookexternalhit", "facebot", "twitterbot", "linkedinbot",
	"whatsapp", "telegrambot", "applebot", "semrushbot", "ahrefsbot", "mj12bot",
	"dotbot", "petalbot", "bytespider", "gptbot", "ccbot", "claudebot",
	"headlesschrome", "lighthouse", "pingdom", "uptimerobot", "crawler", "spider",
	"crawling", "bot/", "bot;", "+http",
}

// IsBot matches the user agent against known crawler signatures.
func IsBot(userAgent string) bool {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return false
	}
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}

// PlaceholderCart is the static empty cart served to bots.
func PlaceholderCart() domain.Cart {
	return domain.Cart{
		ID:            "bot-cart",
		SessionID:     BotSessionID,
		Status:        domain.CartStatusActive,
		CartType:      domain.CartTypeAnonymous,
		Items:         []domain.CartItem{},
		Subtotal:      "0",
		DiscountTotal: "0",
		Total:         "0",
		Currency:      "VND",
		Promotions:    []domain.Promotion{},
	}
}

func botReply(cl *call, now time.Time) (*reply, error) {
	var payload interface{}
	switch {
	case cl.path == "/cart_sessions":
		payload = sessionResponse{SessionID: BotSessionID, Cart: PlaceholderCart(), ExpiresAt: now.Add(24 * time.Hour)}
	case strings.HasPrefix(cl.path, "/cart_sessions/"):
		payload = map[string]bool{"valid": true}
	case cl.path == "/carts/email":
		payload = domain.EmailCartResponse{ID: "bot", CartID: "bot-cart", SentAt: now, ExpiresAt: now}
	case cl.path == "/carts/update_guest_email":
		payload = domain.GuestEmailResult{Success: true, Message: "ok"}
	case cl.path == "/carts/remove_item":
		payload = nil
	case strings.HasPrefix(cl.path, "/carts"):
		payload = PlaceholderCart()
	case cl.path == "/categories/related_products":
		payload = relatedProductsResponse{RelatedProducts: []domain.RelatedProduct{}}
	case cl.path == "/store_addresses":
		payload = storeAddressesResponse{StoreAddresses: []domain.StoreAddress{}}
	default:
		return nil, &domain.APIError{StatusCode: http.StatusForbidden, Message: "automated traffic is not served"}
	}
	rep := &reply{status: http.StatusOK, header: http.Header{}}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		rep.body = raw
	}
	return rep, nil
}
