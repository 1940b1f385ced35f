package checkout

import (
	"context"
	"strings"
	"sync"

	"storefront/internal/domain"
	"storefront/internal/i18n"
	"storefront/internal/notify"
	"storefront/internal/service/cart"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type orderGateway interface {
	UpdateGuestEmail(ctx context.Context, email string) (*domain.GuestEmailResult, error)
	CreateOrder(ctx context.Context, in domain.CreateOrderInput) (*domain.Order, error)
	ListStoreAddresses(ctx context.Context) ([]domain.StoreAddress, error)
}

type cartSource interface {
	Snapshot() cart.State
	InitializeCart(ctx context.Context, silent bool)
}

// Submitted marks the steps whose summary card is shown read-only.
type Submitted struct {
	Welcome  bool `json:"welcome"`
	Shipping bool `json:"shipping"`
	Payment  bool `json:"payment"`
}

type State struct {
	Form           OrderForm             `json:"form"`
	Submitted      Submitted             `json:"submitted"`
	ShippingTab    string                `json:"shipping_tab"`
	Submitting     bool                  `json:"submitting"`
	OrderError     *OrderError           `json:"order_error,omitempty"`
	Order          *domain.Order         `json:"order,omitempty"`
	Stores         []domain.StoreAddress `json:"stores,omitempty"`
	PaymentOptions []PaymentOption       `json:"payment_options"`
}

// SubmitResult is returned by a successful order submission. RedirectURL is
// set when the payment method continues on an external payment page.
type SubmitResult struct {
	Order       *domain.Order `json:"order"`
	RedirectURL string        `json:"redirect_url,omitempty"`
}

type Machine struct {
	mu    sync.Mutex
	state State
	// gen changes on every Edit and Reset so submissions that released the
	// lock can tell the step was moved under them.
	gen   uint64

	gateway  orderGateway
	cart     cartSource
	notifier notify.Notifier
	tr       *i18n.Translator
	validate *validator.Validate
	logger   zerolog.Logger
}

func New(gw orderGateway, cartSrc cartSource, notifier notify.Notifier, tr *i18n.Translator, logger zerolog.Logger) *Machine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	m := &Machine{
		gateway:  gw,
		cart:     cartSrc,
		notifier: notifier,
		tr:       tr,
		validate: newValidator(),
		logger:   logger.With().Str("component", "checkout").Logger(),
	}
	m.state = freshState()
	return m
}

func freshState() State {
	return State{Form: initialForm(), ShippingTab: ShipToAddress}
}

// Snapshot returns the checkout state with payment options for the current cart.
func (m *Machine) Snapshot() State {
	subtotal := m.cart.Snapshot().CartSummary.Subtotal
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.state
	if m.state.Form.ShippingAddress != nil {
		addr := *m.state.Form.ShippingAddress
		out.Form.ShippingAddress = &addr
	}
	out.Stores = append([]domain.StoreAddress(nil), m.state.Stores...)
	out.PaymentOptions = PaymentOptions(subtotal)
	return out
}

func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Form.CheckoutStep
}

// SetProfile marks the checkout as authenticated and prefills contact data.
// A nil profile reverts to guest checkout.
func (m *Machine) SetProfile(profile *domain.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &m.state.Form
	if profile == nil {
		f.AuthenticatedSession = false
		return
	}
	f.AuthenticatedSession = true
	f.Email = profile.Email
	if f.Name == "" {
		f.Name = profile.Name
	}
	if f.PhoneNumber == "" {
		f.PhoneNumber = profile.PhoneNumber
	}
}

func (m *Machine) requireStep(step Step) error {
	if m.state.Form.CheckoutStep != step {
		return domain.ErrStepLocked
	}
	return nil
}

// stillAt reports whether the machine sits on step with no Edit or Reset
// since gen was read. Callers hold m.mu.
func (m *Machine) stillAt(step Step, gen uint64) error {
	if m.gen != gen {
		return domain.ErrStepLocked
	}
	return m.requireStep(step)
}

// SubmitWelcome records the guest email and advances to shipping. Signed-in
// shoppers skip the email round trip.
func (m *Machine) SubmitWelcome(ctx context.Context, email string) error {
	m.mu.Lock()
	if err := m.requireStep(StepWelcome); err != nil {
		m.mu.Unlock()
		return err
	}
	authenticated := m.state.Form.AuthenticatedSession
	gen := m.gen
	m.mu.Unlock()

	if !authenticated {
		in := welcomeInput{Email: strings.TrimSpace(email)}
		if err := m.validate.Struct(in); err != nil {
			return fieldErrors(err, m.tr)
		}
		res, err := m.gateway.UpdateGuestEmail(ctx, in.Email)
		if err != nil {
			m.logger.Error().Err(err).Msg("update guest email")
			return err
		}
		if !res.Success {
			msg := res.Message
			if msg == "" {
				msg = m.tr.T(i18n.InvalidEmail)
			}
			return &ValidationError{Fields: map[string]string{"email": msg}}
		}
		email = in.Email
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stillAt(StepWelcome, gen); err != nil {
		return err
	}
	if !authenticated {
		m.state.Form.Email = email
	}
	m.state.Submitted.Welcome = true
	m.state.Form.CheckoutStep = StepShipping
	return nil
}

// SelectShippingTab switches the active shipping mode. Committed shipping
// data stays in the form until the next submission.
func (m *Machine) SelectShippingTab(method string) error {
	if method != ShipToAddress && method != PickUpAtStore {
		return &ValidationError{Fields: map[string]string{"shipping_method": m.tr.T(i18n.FieldRequired, "shipping_method")}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireStep(StepShipping); err != nil {
		return err
	}
	m.state.ShippingTab = method
	m.state.Submitted.Shipping = false
	return nil
}

// Stores loads the pick-up store list once and caches it.
func (m *Machine) Stores(ctx context.Context) ([]domain.StoreAddress, error) {
	m.mu.Lock()
	cached := m.state.Stores
	m.mu.Unlock()
	if len(cached) > 0 {
		return append([]domain.StoreAddress(nil), cached...), nil
	}
	stores, err := m.gateway.ListStoreAddresses(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.state.Stores = stores
	m.mu.Unlock()
	return append([]domain.StoreAddress(nil), stores...), nil
}

func (m *Machine) SubmitShipping(ctx context.Context, in ShippingInput) error {
	m.mu.Lock()
	if err := m.requireStep(StepShipping); err != nil {
		m.mu.Unlock()
		return err
	}
	gen := m.gen
	m.mu.Unlock()

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := m.validate.Struct(in); err != nil {
		return fieldErrors(err, m.tr)
	}
	if in.Method == PickUpAtStore {
		stores, err := m.Stores(ctx)
		if err != nil {
			m.logger.Error().Err(err).Msg("list store addresses")
			return err
		}
		if !containsStore(stores, in.StoreAddressID) {
			return &ValidationError{Fields: map[string]string{"store_address_id": m.tr.T(i18n.StoreRequired)}}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stillAt(StepShipping, gen); err != nil {
		return err
	}
	f := &m.state.Form
	f.ShippingMethod = in.Method
	f.PhoneNumber = in.PhoneNumber
	if in.Name != "" {
		f.Name = strings.TrimSpace(in.Name)
	}
	if in.Method == ShipToAddress {
		f.ShippingAddress = &domain.ShippingAddress{
			Address: strings.TrimSpace(in.Address),
			Ward:    strings.TrimSpace(in.Ward),
			City:    strings.TrimSpace(in.City),
		}
		f.StoreAddressID = ""
	} else {
		f.StoreAddressID = in.StoreAddressID
	}
	m.state.ShippingTab = in.Method
	m.state.Submitted.Shipping = true
	f.CheckoutStep = StepPayment
	return nil
}

func containsStore(stores []domain.StoreAddress, id string) bool {
	for _, s := range stores {
		if s.ID == id {
			return true
		}
	}
	return false
}

// SelectPaymentMethod picks a method offered for the current cart and clears
// any previous order error.
func (m *Machine) SelectPaymentMethod(method string) error {
	if method == "" {
		return &ValidationError{Fields: map[string]string{"payment_method": m.tr.T(i18n.PaymentMethodRequired)}}
	}
	opts := PaymentOptions(m.cart.Snapshot().CartSummary.Subtotal)
	if _, ok := findOption(opts, method); !ok {
		return &ValidationError{Fields: map[string]string{"payment_method": m.tr.T(i18n.PaymentMethodForbidden)}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireStep(StepPayment); err != nil {
		return err
	}
	m.state.Form.PaymentMethod = method
	m.state.OrderError = nil
	return nil
}

// SubmitPayment creates the order. Failures leave the form untouched so the
// shopper can correct and resubmit.
func (m *Machine) SubmitPayment(ctx context.Context) (*SubmitResult, error) {
	cartState := m.cart.Snapshot()

	m.mu.Lock()
	if err := m.requireStep(StepPayment); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if m.state.Submitting {
		m.mu.Unlock()
		return nil, domain.ErrSubmitInProgress
	}
	form := m.state.Form
	if form.PaymentMethod == "" {
		m.mu.Unlock()
		return nil, &ValidationError{Fields: map[string]string{"payment_method": m.tr.T(i18n.PaymentMethodRequired)}}
	}
	option, ok := findOption(PaymentOptions(cartState.CartSummary.Subtotal), form.PaymentMethod)
	if !ok {
		m.mu.Unlock()
		return nil, &ValidationError{Fields: map[string]string{"payment_method": m.tr.T(i18n.PaymentMethodForbidden)}}
	}
	if cartState.Cart == nil {
		oe := &OrderError{Kind: KindCartGone, Message: m.tr.T(i18n.OrderCartGone)}
		m.state.OrderError = oe
		m.mu.Unlock()
		return nil, oe
	}
	m.state.Submitting = true
	m.state.OrderError = nil
	gen := m.gen
	m.mu.Unlock()

	in := domain.CreateOrderInput{
		CartID:            cartState.Cart.ID,
		Name:              form.Name,
		Email:             form.Email,
		PhoneNumber:       form.PhoneNumber,
		ShippingMethod:    form.ShippingMethod,
		PaymentMethod:     form.PaymentMethod,
		Currency:          cartState.CartSummary.Currency,
		InstallmentIntent: form.PaymentMethod == PaymentInstallment,
		ApplyPromotions:   len(cartState.Cart.Promotions) > 0,
	}
	if form.ShippingMethod == PickUpAtStore {
		in.StoreAddressID = form.StoreAddressID
	} else {
		in.ShippingAddress = form.ShippingAddress
	}

	order, err := m.gateway.CreateOrder(ctx, in)
	if err != nil {
		oe := classifyOrderError(err, m.tr)
		m.logger.Error().Err(err).Str("kind", string(oe.Kind)).Msg("create order")
		m.mu.Lock()
		defer m.mu.Unlock()
		if err := m.stillAt(StepPayment, gen); err != nil {
			return nil, err
		}
		m.state.Submitting = false
		m.state.OrderError = oe
		return nil, oe
	}

	m.logger.Info().Str("order_number", order.OrderNumber).Str("payment_method", form.PaymentMethod).Msg("order placed")
	result := &SubmitResult{Order: order}
	m.mu.Lock()
	if err := m.stillAt(StepPayment, gen); err != nil {
		m.mu.Unlock()
		m.logger.Warn().Str("order_number", order.OrderNumber).Msg("checkout reset while order was in flight")
		m.cart.InitializeCart(ctx, true)
		return nil, err
	}
	m.state.Submitting = false
	m.state.Submitted.Payment = true
	m.state.Order = order
	if option.Redirect && order.PaymentURL != "" {
		result.RedirectURL = order.PaymentURL
	} else {
		m.state.Form.CheckoutStep = StepSuccess
	}
	m.mu.Unlock()

	if result.RedirectURL == "" {
		m.notifier.Notify(notify.LevelSuccess, m.tr.T(i18n.OrderPlaced, order.OrderNumber))
	}
	// The ordered cart is checked out server side; pick up the fresh one.
	m.cart.InitializeCart(ctx, true)
	return result, nil
}

// Edit rewinds to an already submitted earlier step. Entered data is kept.
func (m *Machine) Edit(step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.state.Form.CheckoutStep
	if current == StepSuccess || step >= current || step < StepWelcome {
		return domain.ErrStepLocked
	}
	if m.state.Submitting {
		return domain.ErrSubmitInProgress
	}
	m.gen++
	m.state.Form.CheckoutStep = step
	if step == StepShipping {
		m.state.ShippingTab = m.state.Form.ShippingMethod
	}
	return nil
}

// Reset abandons the checkout, or clears it after a completed order.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	authenticated := m.state.Form.AuthenticatedSession
	email := m.state.Form.Email
	m.gen++
	m.state = freshState()
	if authenticated {
		m.state.Form.AuthenticatedSession = true
		m.state.Form.Email = email
	}
}
