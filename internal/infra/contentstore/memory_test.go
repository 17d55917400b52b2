package contentstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bountyd/internal/domain"
)

func TestMemoryPutGetRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	data := []byte(`{"task_id":"task-1"}`)
	id, err := store.Put(ctx, data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(id, "bafk") {
		t.Fatalf("expected a CIDv1 raw identifier, got %s", id)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("round trip mismatch: %s", got)
	}
}

func TestMemoryPutIdempotent(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	data := []byte("same bytes")
	first, err := store.Put(ctx, data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	second, err := store.Put(ctx, data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if first != second {
		t.Fatalf("identical bytes produced different CIDs: %s vs %s", first, second)
	}

	other, err := store.Put(ctx, []byte("different bytes"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if other == first {
		t.Fatalf("different bytes must produce different CIDs")
	}
}

func TestMemoryGetMiss(t *testing.T) {
	store := NewMemory()
	if _, err := store.Get(context.Background(), "bafk-nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCopiesOnReadAndWrite(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	data := []byte("immutable")
	id, err := store.Put(ctx, data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	data[0] = 'X'

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "immutable" {
		t.Fatalf("store leaked the caller's slice: %s", got)
	}

	got[0] = 'Y'
	again, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(again) != "immutable" {
		t.Fatalf("store leaked its internal slice: %s", again)
	}
}

func TestVerifyCID(t *testing.T) {
	data := []byte("content to address")
	id, err := CID(data)
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	if !VerifyCID(id, data) {
		t.Fatalf("cid must verify against its own content")
	}
	if VerifyCID(id, []byte("other content")) {
		t.Fatalf("cid must not verify against different content")
	}
	if VerifyCID("not-a-cid", data) {
		t.Fatalf("malformed cid must not verify")
	}
}
