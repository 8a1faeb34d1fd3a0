package state

import (
	"testing"
	"time"
)

func TestStoreGetPut(t *testing.T) {
	s := NewStore()

	if _, ok := s.Get("inc-1"); ok {
		t.Fatal("Get on empty store should report no token")
	}

	s.Put("inc-1", "token-a")
	got, ok := s.Get("inc-1")
	if !ok || got != "token-a" {
		t.Errorf("Get = %q, %v, want %q, true", got, ok, "token-a")
	}
}

func TestStoreRefreshReplacesToken(t *testing.T) {
	s := NewStore()

	// Sequential turns for one investigation: the later token wins.
	s.Put("inc-1", "token-a")
	s.Put("inc-1", "token-b")

	got, ok := s.Get("inc-1")
	if !ok || got != "token-b" {
		t.Errorf("Get = %q, want the refreshed token %q", got, "token-b")
	}
}

func TestStoreEmptyIDIgnored(t *testing.T) {
	s := NewStore()
	s.Put("", "orphan")
	if s.Len() != 0 {
		t.Error("token without an investigation id must not be stored")
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore()
	s.Put("inc-1", "token-a")
	s.Clear("inc-1")
	if _, ok := s.Get("inc-1"); ok {
		t.Error("Get after Clear should report no token")
	}
}

func TestStoreSweep(t *testing.T) {
	s := NewStore()
	current := time.Now()
	s.now = func() time.Time { return current }

	s.Put("stale", "old-token")

	current = current.Add(25 * time.Hour)
	s.Put("fresh", "new-token")

	removed := s.Sweep(24 * time.Hour)
	if removed != 1 {
		t.Fatalf("Sweep removed %d entries, want 1", removed)
	}
	if _, ok := s.Get("stale"); ok {
		t.Error("stale token survived the sweep")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Error("fresh token was swept")
	}
}

func TestStoreGetBumpsLastUsed(t *testing.T) {
	s := NewStore()
	current := time.Now()
	s.now = func() time.Time { return current }

	s.Put("inc-1", "token-a")

	// Touch the token just before the retention boundary.
	current = current.Add(23 * time.Hour)
	s.Get("inc-1")

	current = current.Add(2 * time.Hour)
	if removed := s.Sweep(24 * time.Hour); removed != 0 {
		t.Errorf("Sweep removed %d entries, want 0: recent Get should keep the token alive", removed)
	}
}
