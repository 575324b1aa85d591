package carddb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DB is a read-only card type index loaded from a cards.cdb style SQLite file.
// It implements deck.CardReader.
type DB struct {
	mu    sync.RWMutex
	types map[uint32]uint32
	path  string
}

func Open(ctx context.Context, path string) (*DB, error) {
	db := &DB{path: path, types: map[uint32]uint32{}}
	if err := db.Reload(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Reload re-reads the whole datas table and swaps it in atomically.
func (d *DB) Reload(ctx context.Context) error {
	started := time.Now()
	conn, err := sql.Open("sqlite", d.path)
	if err != nil {
		return fmt.Errorf("open card db: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT id, type FROM datas`)
	if err != nil {
		return fmt.Errorf("query card types: %w", err)
	}
	defer rows.Close()

	types := make(map[uint32]uint32, 16384)
	for rows.Next() {
		var id, typ int64
		if err := rows.Scan(&id, &typ); err != nil {
			return fmt.Errorf("scan card row: %w", err)
		}
		types[uint32(id)] = uint32(typ)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.types = types
	d.mu.Unlock()
	log.Info().Str("path", d.path).Int("cards", len(types)).Dur("took", time.Since(started)).Msg("card db loaded")
	return nil
}

func (d *DB) CardType(code uint32) (uint32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.types[code]
	return t, ok
}

func (d *DB) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.types)
}
