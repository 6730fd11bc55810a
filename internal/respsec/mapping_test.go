package respsec

import (
	"context"
	"errors"
	"testing"
	"time"

	"respgate/internal/cache"
)

// failingStore simulates an unavailable cache backend.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("transport down")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("transport down")
}

func TestMappingStoreRoundTrip(t *testing.T) {
	mem := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { mem.Close() })

	store := NewMappingStore(mem)
	ctx := context.Background()

	if _, found := store.Lookup(ctx, "resp_token"); found {
		t.Fatalf("lookup of a key never written must be absent")
	}

	store.Record(ctx, "resp_token", "resp_plain", Owner{UserID: "u1", TeamID: "t1"})

	entry, found := store.Lookup(ctx, "resp_token")
	if !found {
		t.Fatalf("expected recorded entry")
	}
	if entry.ResponseID != "resp_plain" || entry.UserID != "u1" || entry.TeamID != "t1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestMappingStoreBestEffort(t *testing.T) {
	store := NewMappingStore(failingStore{})
	ctx := context.Background()

	// Neither call may surface the transport failure.
	store.Record(ctx, "resp_token", "resp_plain", Owner{UserID: "u1"})

	if _, found := store.Lookup(ctx, "resp_token"); found {
		t.Fatalf("transport failure must read as absent")
	}
}
