package localstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"storefront/internal/domain"
	"storefront/internal/migrate"
)

func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "browser-1", KeyUser); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := repo.Set(ctx, "browser-1", KeyUser, []byte(`{"id":"1"}`)); err != nil {
		t.Fatalf("Set user: %v", err)
	}
	if err := repo.Set(ctx, "browser-1", KeyTokens, []byte(`{"access":"a"}`)); err != nil {
		t.Fatalf("Set tokens: %v", err)
	}
	if err := repo.Set(ctx, "browser-2", KeyUser, []byte(`{"id":"2"}`)); err != nil {
		t.Fatalf("Set other browser: %v", err)
	}

	got, err := repo.Get(ctx, "browser-1", KeyUser)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"id":"1"}` && string(got) != `{"id": "1"}` {
		t.Fatalf("unexpected value %s", got)
	}

	if err := repo.Set(ctx, "browser-1", KeyUser, []byte(`{"id":"3"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = repo.Get(ctx, "browser-1", KeyUser)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != `{"id":"3"}` && string(got) != `{"id": "3"}` {
		t.Fatalf("expected overwritten value, got %s", got)
	}

	if err := repo.Delete(ctx, "browser-1", KeyUser, KeyTokens); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "browser-1", KeyTokens); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected tokens deleted, got %v", err)
	}
	if _, err := repo.Get(ctx, "browser-2", KeyUser); err != nil {
		t.Fatalf("other browser must be untouched: %v", err)
	}
}

func TestMemory_RoundTrip(t *testing.T) {
	exerciseRepository(t, NewMemory())
}

func TestMemory_RejectsBlankKey(t *testing.T) {
	repo := NewMemory()
	if err := repo.Set(context.Background(), "", KeyUser, []byte(`{}`)); err == nil {
		t.Fatalf("expected error for blank browser id")
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	value := []byte(`{"a":1}`)
	if err := repo.Set(ctx, "b", "k", value); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value[0] = 'X'
	got, err := repo.Get(ctx, "b", "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got[0] != '{' {
		t.Fatalf("stored value aliased caller slice: %s", got)
	}
}

func TestPostgres_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if _, err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE local_storage`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	exerciseRepository(t, NewPostgres(pool, nil))
}

func TestRedis_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := ConnectRedis(ctx, url)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer client.Close()
	client.Del(ctx, redisKey("browser-1", KeyUser), redisKey("browser-1", KeyTokens), redisKey("browser-2", KeyUser))

	exerciseRepository(t, NewRedis(client, 0))
}
