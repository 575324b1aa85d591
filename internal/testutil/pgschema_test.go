package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWithSearchPath(t *testing.T) {
	cases := []struct {
		dsn, want string
	}{
		{"postgres://u@h/db", "postgres://u@h/db?search_path=test_1"},
		{"postgres://u@h/db?sslmode=disable", "postgres://u@h/db?sslmode=disable&search_path=test_1"},
	}
	for _, tc := range cases {
		if got := withSearchPath(tc.dsn, "test_1"); got != tc.want {
			t.Fatalf("withSearchPath(%q) = %q, want %q", tc.dsn, got, tc.want)
		}
	}
}

func TestUpMigrationsFindsRepoMigrations(t *testing.T) {
	files, err := upMigrations()
	if err != nil {
		t.Fatalf("upMigrations: %v", err)
	}
	if filepath.Base(files[0]) != "000001_init.up.sql" {
		t.Fatalf("first migration = %s", files[0])
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			t.Fatalf("stat %s: %v", f, err)
		}
	}
}
