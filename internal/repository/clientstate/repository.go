package clientstate

import "context"

// Keys persisted per visitor.
const (
	KeyCartSession    = "cart_session"
	KeyUserProfile    = "user_profile"
	KeyCartTotalItems = "cart_total_items"
)

// Repository is durable key/value storage partitioned by visitor (owner).
// Get returns domain.ErrNotFound for absent keys.
type Repository interface {
	Get(ctx context.Context, owner, key string) ([]byte, error)
	Set(ctx context.Context, owner, key string, value []byte) error
	Delete(ctx context.Context, owner, key string) error
	Ping(ctx context.Context) error
}
