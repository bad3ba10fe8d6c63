package data

import (
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	if _, ok, _ := s.Get("missing"); ok {
		t.Error("Get(missing) should report absent")
	}

	if err := s.Set("geocache/u10hb4", []byte(`["a"]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("geocache/u10hb5", []byte(`["b"]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("other/x", []byte(`1`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := s.Get("geocache/u10hb4")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(v) != `["a"]` {
		t.Errorf("Get = %s, want [\"a\"]", v)
	}

	// overwrite
	if err := s.Set("geocache/u10hb4", []byte(`["a","c"]`)); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, _, _ = s.Get("geocache/u10hb4")
	if string(v) != `["a","c"]` {
		t.Errorf("Get after overwrite = %s", v)
	}

	keys, err := s.Keys("geocache/")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "geocache/u10hb4" || keys[1] != "geocache/u10hb5" {
		t.Errorf("Keys = %v, want the two geocache keys sorted", keys)
	}

	if err := s.Delete("geocache/u10hb4"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("geocache/u10hb4"); ok {
		t.Error("Get after Delete should report absent")
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	testStore(t, s)
}
