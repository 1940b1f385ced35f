package domain

import "time"

// Session identifies an anonymous shopper to the cart backend.
type Session struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UserProfile is the signed-in display profile cached per visitor. It is not
// an authorization credential.
type UserProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}
