package cart

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/i18n"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoCodesNormalizeAndDedupe(t *testing.T) {
	p := NewPromoCodes(nil)

	added, err := p.Add(" sale-10 ")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = p.Add("SALE-10")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = p.Add("bad code!")
	assert.ErrorIs(t, err, ErrInvalidPromoCode)
	_, err = p.Add("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456")
	assert.ErrorIs(t, err, ErrInvalidPromoCode)

	assert.Equal(t, []string{"SALE-10"}, p.Codes())
	p.Remove("sale-10")
	assert.Empty(t, p.Codes())
}

func TestPromoCodeErrorIsLocalized(t *testing.T) {
	f := newFixture(&stubGateway{cart: sampleCart()})
	p := NewPromoCodes(f.store)

	_, err := p.Add("no spaces")

	var perr *PromoCodeError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ErrInvalidPromoCode)
	assert.Equal(t, "no spaces", perr.Code)
	assert.Equal(t, i18n.New("en").T(i18n.PromoCodeInvalid), perr.Message)
}

func TestPromoCodesApplyClearsOnlyOnSuccess(t *testing.T) {
	gw := &stubGateway{cart: sampleCart(), mutationErr: errors.New("rejected")}
	f := newFixture(gw)
	p := NewPromoCodes(f.store)
	_, _ = p.Add("WELCOME")

	require.Error(t, p.Apply(context.Background()))
	assert.Equal(t, []string{"WELCOME"}, p.Codes())

	gw.mutationErr = nil
	require.NoError(t, p.Apply(context.Background()))
	assert.Empty(t, p.Codes())
	assert.Equal(t, []string{"WELCOME"}, gw.lastCodes)
}

func TestPromoCodesApplyEmpty(t *testing.T) {
	p := NewPromoCodes(nil)
	assert.ErrorIs(t, p.Apply(context.Background()), ErrNoPromoCodes)
}

func TestShareLinkRequiresToken(t *testing.T) {
	_, err := ShareLink("https://shop.example.vn", "")
	assert.ErrorIs(t, err, ErrShareUnavailable)
}
