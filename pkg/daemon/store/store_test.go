package store_test

import (
	"testing"

	"github.com/jamesainslie/declutter/pkg/daemon/store"
)

func TestStoreRecordRoundTrip(t *testing.T) {
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	activity := map[string]int64{"1": 1000, "2": 2000}
	if err := s.Put(store.KeyLastActive, activity); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var got map[string]int64
	found, err := s.Get(store.KeyLastActive, &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected record to exist")
	}
	if got["2"] != 2000 {
		t.Errorf("Expected 2000, got %d", got["2"])
	}
}

func TestStoreGetMissing(t *testing.T) {
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer s.Close()

	var got map[string]bool
	found, err := s.Get(store.KeyImportant, &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Expected missing record")
	}
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer s.Close()

	if err := s.Delete(store.KeyCandidates); err != nil {
		t.Fatalf("Delete of absent key failed: %v", err)
	}

	if err := s.Put(store.KeyCandidates, []string{"a"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Delete(store.KeyCandidates); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Has(store.KeyCandidates) {
		t.Error("Expected record to be gone")
	}
}

func TestStoreIsEmpty(t *testing.T) {
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer s.Close()

	if !s.IsEmpty() {
		t.Fatal("Expected fresh store to be empty")
	}

	if err := s.Put(store.KeySettings, map[string]any{"autoApprove": true}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if s.IsEmpty() {
		t.Error("Expected store with settings to be non-empty")
	}
}
