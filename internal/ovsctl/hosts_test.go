package ovsctl

import (
	"os"
	"path/filepath"
	"testing"
)

func TestUpsertHostMappingAppendsNewEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	if err := os.WriteFile(path, []byte("127.0.0.1 localhost\n"), 0o644); err != nil {
		t.Fatalf("seed hosts file: %v", err)
	}

	if err := UpsertHostMapping(path, "color.com", "10.0.101.1"); err != nil {
		t.Fatalf("UpsertHostMapping: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read hosts: %v", err)
	}
	want := "127.0.0.1 localhost\n10.0.101.1 color.com\n"
	if string(got) != want {
		t.Fatalf("hosts file = %q, want %q", got, want)
	}
}

func TestUpsertHostMappingReplacesExistingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	if err := os.WriteFile(path, []byte("127.0.0.1 localhost\n10.0.101.1 color.com\n"), 0o644); err != nil {
		t.Fatalf("seed hosts file: %v", err)
	}

	if err := UpsertHostMapping(path, "color.com", "10.0.202.1"); err != nil {
		t.Fatalf("UpsertHostMapping: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read hosts: %v", err)
	}
	want := "127.0.0.1 localhost\n10.0.202.1 color.com\n"
	if string(got) != want {
		t.Fatalf("hosts file = %q, want %q", got, want)
	}
}
