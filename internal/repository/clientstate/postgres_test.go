package clientstate

import (
	"context"
	"os"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	pool := testPool(ctx, t)
	defer pool.Close()

	require.NoError(t, migrate.Apply(ctx, pool))
	_, err := pool.Exec(ctx, `TRUNCATE client_state`)
	require.NoError(t, err)

	repo := NewPostgres(pool)
	require.NoError(t, repo.Set(ctx, "visitor", KeyCartSession, []byte(`{"sessionId":"s1"}`)))
	require.NoError(t, repo.Set(ctx, "visitor", KeyCartSession, []byte(`{"sessionId":"s2"}`)))

	got, err := repo.Get(ctx, "visitor", KeyCartSession)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionId":"s2"}`, string(got))

	require.NoError(t, repo.Delete(ctx, "visitor", KeyCartSession))
	_, err = repo.Get(ctx, "visitor", KeyCartSession)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	return pool
}
