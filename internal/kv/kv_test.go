package kv

import (
	"os"
	"path/filepath"
	"testing"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v err %v", ok, err)
	}
	if err := s.Set("k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("k", "v2"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get("k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("Get(k) = %q %v %v", v, ok, err)
	}
	if err := s.Remove("k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Fatal("key should be gone after Remove")
	}
	if err := s.Remove("k"); err != nil {
		t.Fatalf("removing an absent key should succeed: %v", err)
	}
}

func TestMemoryStore(t *testing.T) { exercise(t, NewMemoryStore()) }

func TestFileStore(t *testing.T) {
	exercise(t, NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json")))
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := NewFileStore(path).Set("filters", `{"college":"NIET"}`); err != nil {
		t.Fatal(err)
	}
	v, ok, err := NewFileStore(path).Get("filters")
	if err != nil || !ok || v != `{"college":"NIET"}` {
		t.Fatalf("reopened store returned %q %v %v", v, ok, err)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewFileStore(path).Get("x"); err == nil {
		t.Fatal("expected a decode error for a corrupt file")
	}
}

func TestPrefixed(t *testing.T) {
	base := NewMemoryStore()
	p := Prefixed{Prefix: "user:42:", Store: base}
	exercise(t, p)
	_ = p.Set("filters", "x")
	if _, ok, _ := base.Get("user:42:filters"); !ok {
		t.Fatal("prefixed key not written to the base store")
	}
}
