package clientstate

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"storefront/internal/domain"
)

// Storage is a Repository bound to a single visitor.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type scoped struct {
	repo  Repository
	owner string
}

func Scope(repo Repository, owner string) Storage {
	return &scoped{repo: repo, owner: owner}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.repo.Get(ctx, s.owner, key)
}

func (s *scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.repo.Set(ctx, s.owner, key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, s.owner, key)
}

// ItemCounter persists the total cart item count read by badge views.
type ItemCounter struct {
	storage Storage
}

func NewItemCounter(storage Storage) *ItemCounter {
	return &ItemCounter{storage: storage}
}

func (c *ItemCounter) SetTotalItems(ctx context.Context, n int) error {
	return c.storage.Set(ctx, KeyCartTotalItems, []byte(strconv.Itoa(n)))
}

// TotalItems returns 0 when nothing was stored or the value is unreadable.
func (c *ItemCounter) TotalItems(ctx context.Context) int {
	raw, err := c.storage.Get(ctx, KeyCartTotalItems)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (c *ItemCounter) Reset(ctx context.Context) error {
	return c.storage.Delete(ctx, KeyCartTotalItems)
}

// ProfileCache stores the signed-in display profile.
type ProfileCache struct {
	storage Storage
}

func NewProfileCache(storage Storage) *ProfileCache {
	return &ProfileCache{storage: storage}
}

func (p *ProfileCache) Save(ctx context.Context, profile domain.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return p.storage.Set(ctx, KeyUserProfile, raw)
}

// Load returns nil without error when no profile is cached. A corrupt entry
// is removed and reported as absent.
func (p *ProfileCache) Load(ctx context.Context) (*domain.UserProfile, error) {
	raw, err := p.storage.Get(ctx, KeyUserProfile)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var profile domain.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil || profile.Email == "" {
		_ = p.storage.Delete(ctx, KeyUserProfile)
		return nil, nil
	}
	return &profile, nil
}

func (p *ProfileCache) Clear(ctx context.Context) error {
	return p.storage.Delete(ctx, KeyUserProfile)
}
