package domain

import "time"

type Order struct {
	ID          string    `json:"id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	Total       Amount    `json:"total"`
	Currency    string    `json:"currency"`
	PaymentURL  string    `json:"payment_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ShippingAddress struct {
	Address string `json:"address" validate:"required"`
	Ward    string `json:"ward" validate:"required"`
	City    string `json:"city" validate:"required"`
}

// CreateOrderInput is the order creation payload.
type CreateOrderInput struct {
	CartID            string           `json:"cart_id"`
	Name              string           `json:"name"`
	Email             string           `json:"email"`
	PhoneNumber       string           `json:"phone_number"`
	ShippingMethod    string           `json:"shipping_method"`
	PaymentMethod     string           `json:"payment_method"`
	Currency          string           `json:"currency"`
	InstallmentIntent bool             `json:"installment_intent"`
	ApplyPromotions   bool             `json:"apply_promotions"`
	ShippingAddress   *ShippingAddress `json:"shipping_address,omitempty"`
	StoreAddressID    string           `json:"store_address_id,omitempty"`
}

type StoreAddress struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city,omitempty"`
	Phone   string `json:"phone,omitempty"`
}
