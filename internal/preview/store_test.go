package preview

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestStores(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore error: %v", err)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })

	mr := miniredis.RunT(t)
	redisStore, err := NewRedisStore("redis://"+mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore error: %v", err)
	}
	t.Cleanup(func() { _ = redisStore.Close() })

	return map[string]Store{
		TypeMemory: NewMemoryStore(),
		TypeSQLite: sqliteStore,
		TypeRedis:  redisStore,
	}
}

func TestStore_PutGetRelease(t *testing.T) {
	ctx := context.Background()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte{0xFF, 0xD8, 0x00, 0x01}
			id, err := store.Put(ctx, "image/jpeg", data)
			if err != nil {
				t.Fatalf("Put error: %v", err)
			}
			if id == "" {
				t.Fatal("expected non-empty id")
			}

			got, err := store.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get error: %v", err)
			}
			if got.MIMEType != "image/jpeg" {
				t.Errorf("expected mime image/jpeg, got %q", got.MIMEType)
			}
			if !bytes.Equal(got.Data, data) {
				t.Errorf("expected data %v, got %v", data, got.Data)
			}

			if err := store.Release(ctx, id); err != nil {
				t.Fatalf("Release error: %v", err)
			}
			if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound after release, got %v", err)
			}
		})
	}
}

func TestStore_ReleaseTwice(t *testing.T) {
	ctx := context.Background()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			id, err := store.Put(ctx, "image/png", []byte("png"))
			if err != nil {
				t.Fatalf("Put error: %v", err)
			}
			if err := store.Release(ctx, id); err != nil {
				t.Fatalf("first Release error: %v", err)
			}
			if err := store.Release(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound on second release, got %v", err)
			}
		})
	}
}

func TestStore_GetUnknown(t *testing.T) {
	ctx := context.Background()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, "does-not-exist"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRedisStore_Expires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore error: %v", err)
	}
	defer func() { _ = store.Close() }()

	id, err := store.Put(ctx, "image/jpeg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired preview to be gone, got %v", err)
	}
}

func TestNewStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name             string
		storeType        string
		connectionString string
		wantErr          bool
	}{
		{"Default is memory", "", "", false},
		{"Memory", TypeMemory, "", false},
		{"SQLite in memory", TypeSQLite, ":memory:", false},
		{"Redis", TypeRedis, "redis://" + mr.Addr(), false},
		{"Bad redis URL", TypeRedis, "not-a-url", true},
		{"Unknown type", "postgres", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.storeType, tt.connectionString, time.Minute)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStore error: %v", err)
			}
			_ = store.Close()
		})
	}
}
