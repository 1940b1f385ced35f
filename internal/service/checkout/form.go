// Package checkout drives the four-step checkout: welcome, shipping, payment
// and success.
package checkout

import "storefront/internal/domain"

type Step int

const (
	StepWelcome Step = iota
	StepShipping
	StepPayment
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepWelcome:
		return "welcome"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// ParseStep maps a step name back to its Step.
func ParseStep(name string) (Step, bool) {
	for s := StepWelcome; s <= StepSuccess; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	ShipToAddress = "ship_to_address"
	PickUpAtStore = "pick_up_at_store"
)

const (
	PaymentCOD          = "cod"
	PaymentBankTransfer = "bank_transfer"
	PaymentOnline       = "online"
	PaymentInstallment  = "installment"
)

// InstallmentThreshold is the subtotal the cart must exceed for installment
// payment to be offered.
const InstallmentThreshold = 3_000_000

type OrderForm struct {
	Email                string                  `json:"email"`
	Name                 string                  `json:"name"`
	PhoneNumber          string                  `json:"phone_number"`
	AuthenticatedSession bool                    `json:"authenticated_session"`
	CheckoutStep         Step                    `json:"checkout_step"`
	ShippingMethod       string                  `json:"shipping_method"`
	StoreAddressID       string                  `json:"store_address_id,omitempty"`
	ShippingAddress      *domain.ShippingAddress `json:"shipping_address,omitempty"`
	PaymentMethod        string                  `json:"payment_method,omitempty"`
}

func initialForm() OrderForm {
	return OrderForm{CheckoutStep: StepWelcome, ShippingMethod: ShipToAddress}
}

type PaymentOption struct {
	Method   string `json:"method"`
	Redirect bool   `json:"redirect"`
}

// PaymentOptions lists the methods available for a cart subtotal.
func PaymentOptions(subtotal float64) []PaymentOption {
	opts := []PaymentOption{
		{Method: PaymentCOD},
		{Method: PaymentBankTransfer},
		{Method: PaymentOnline, Redirect: true},
	}
	if subtotal > InstallmentThreshold {
		opts = append(opts, PaymentOption{Method: PaymentInstallment, Redirect: true})
	}
	return opts
}

func findOption(opts []PaymentOption, method string) (PaymentOption, bool) {
	for _, o := range opts {
		if o.Method == method {
			return o, true
		}
	}
	return PaymentOption{}, false
}
