package shard

import (
	"testing"
	"time"

	"github.com/openhouse/portalcache/types"
)

func TestStoreDeleteResource(t *testing.T) {
	s := NewCOWStore[string]()
	now := time.Now()

	s.Put(types.Key{Resource: "unit-1", Token: "a"}, &types.CacheEntry[string]{Data: "1a", Timestamp: now})
	s.Put(types.Key{Resource: "unit-1", Token: "b"}, &types.CacheEntry[string]{Data: "1b", Timestamp: now})
	s.Put(types.Key{Resource: "unit-2", Token: "a"}, &types.CacheEntry[string]{Data: "2a", Timestamp: now})

	if n := s.DeleteResource("unit-1"); n != 2 {
		t.Fatalf("expected 2 entries removed, got %d", n)
	}
	if s.Size() != 1 {
		t.Fatalf("expected size 1, got %d", s.Size())
	}
	if _, ok := s.Get(types.Key{Resource: "unit-2", Token: "a"}); !ok {
		t.Fatalf("unit-2 entry should survive")
	}
	if n := s.DeleteResource("unit-1"); n != 0 {
		t.Fatalf("second delete should be a no-op, removed %d", n)
	}
}

func TestStoreSnapshotIsolation(t *testing.T) {
	s := NewCOWStore[int]()
	k := types.Key{Resource: "r", Token: "t"}
	s.Put(k, &types.CacheEntry[int]{Data: 1})

	before := s.snapshot()
	s.Put(k, &types.CacheEntry[int]{Data: 2})

	if before[k].Data != 1 {
		t.Fatalf("old snapshot changed after write, got %d", before[k].Data)
	}
	if ent, _ := s.Get(k); ent.Data != 2 {
		t.Fatalf("expected 2, got %d", ent.Data)
	}
}

func TestSelectorIgnoresToken(t *testing.T) {
	var sel HashSelector
	for _, r := range []string{"unit-1", "unit-42", "", "a-much-longer-resource-identifier"} {
		i := sel.Index(r, 8)
		if i < 0 || i >= 8 {
			t.Fatalf("Index(%q) = %d out of range", r, i)
		}
		if j := sel.Index(r, 8); j != i {
			t.Fatalf("Index(%q) not deterministic: %d then %d", r, i, j)
		}
	}
	if sel.Index("anything", 1) != 0 {
		t.Fatalf("a single shard must always be index 0")
	}
}
