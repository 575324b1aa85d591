// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"duel-server/internal/config"

	"github.com/jackc/pgx/v5"
)

// PostgresSchema creates a throwaway schema on TEST_POSTGRES_DSN, applies
// every up migration to it and returns a DSN whose search_path points there.
// The schema is dropped when the test ends. Without TEST_POSTGRES_DSN the
// test is skipped.
func PostgresSchema(t *testing.T) string {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := pgx.Identifier{fmt.Sprintf("test_%d", time.Now().UnixNano())}
	if err := execOn(ctx, cfg.TestPostgresDSN, "CREATE SCHEMA "+schema.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = execOn(ctx, cfg.TestPostgresDSN, "DROP SCHEMA "+schema.Sanitize()+" CASCADE")
	})

	dsn := withSearchPath(cfg.TestPostgresDSN, schema[0])
	files, err := upMigrations()
	if err != nil {
		t.Fatalf("find migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if err := execOn(ctx, dsn, string(b)); err != nil {
			t.Fatalf("apply %s: %v", filepath.Base(f), err)
		}
	}
	return dsn
}

func execOn(ctx context.Context, dsn, sql string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, sql)
	return err
}

// upMigrations finds the repository's migrations directory from the test's
// working directory and returns its up files in order.
func upMigrations() ([]string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	for {
		files, err := filepath.Glob(filepath.Join(dir, "migrations", "*.up.sql"))
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			sort.Strings(files)
			return files, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("no migrations directory above %s", dir)
		}
		dir = parent
	}
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}
