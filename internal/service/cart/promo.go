package cart

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"storefront/internal/i18n"
)

const maxPromoCodeLength = 32

var (
	ErrInvalidPromoCode = errors.New("invalid promo code")
	ErrNoPromoCodes     = errors.New("no promo codes to apply")

	promoCodePattern = regexp.MustCompile(`^[A-Z0-9-]+$`)
)

// PromoCodeError carries the shopper-facing reason a code was refused.
type PromoCodeError struct {
	Code    string
	Message string
}

func (e *PromoCodeError) Error() string { return e.Message }

func (e *PromoCodeError) Unwrap() error { return ErrInvalidPromoCode }

// PromoCodes is the list of codes typed at checkout before they are committed
// to the cart. Codes are upper-cased and deduplicated.
type PromoCodes struct {
	mu    sync.Mutex
	codes []string
	store *Store
}

func NewPromoCodes(store *Store) *PromoCodes {
	return &PromoCodes{store: store}
}

func normalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || len(code) > maxPromoCodeLength || !promoCodePattern.MatchString(code) {
		return "", ErrInvalidPromoCode
	}
	return code, nil
}

// Add returns false when the code was already present.
func (p *PromoCodes) Add(code string) (bool, error) {
	normalized, err := normalizeCode(code)
	if err != nil {
		msg := err.Error()
		if p.store != nil {
			msg = p.store.tr.T(i18n.PromoCodeInvalid)
		}
		return false, &PromoCodeError{Code: code, Message: msg}
	}
	code = normalized
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.codes {
		if c == code {
			return false, nil
		}
	}
	p.codes = append(p.codes, code)
	return true, nil
}

func (p *PromoCodes) Remove(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.codes {
		if c == code {
			p.codes = append(p.codes[:i], p.codes[i+1:]...)
			return
		}
	}
}

func (p *PromoCodes) Codes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.codes...)
}

func (p *PromoCodes) Clear() {
	p.mu.Lock()
	p.codes = nil
	p.mu.Unlock()
}

// Apply commits the pending codes to the cart. The list is cleared only when
// the backend accepts them.
func (p *PromoCodes) Apply(ctx context.Context) error {
	codes := p.Codes()
	if len(codes) == 0 {
		return ErrNoPromoCodes
	}
	if err := p.store.ApplyPromotion(ctx, codes); err != nil {
		return err
	}
	p.Clear()
	return nil
}
