// Package displaycache persists display projections in SQLite so a display
// session can reuse them without rebuilding from the catalogs.
package displaycache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"alloyforge.ai/internal/display"
)

// ErrNotFound is returned when no projection is cached under an id.
var ErrNotFound = errors.New("displaycache: not found")

// Entry is one cached projection and the catalog digest it was built from.
type Entry struct {
	Projection display.Projection
	Digest     string
	UpdatedAt  time.Time
}

type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder

	once sync.Once
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, enc: enc, dec: dec}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS displays (
			recipe_id TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			payload BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_displays_digest ON displays(digest);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.enc.Close()
		s.dec.Close()
		err = s.db.Close()
	})
	return err
}

// Put caches p under its source id. Projections without a source id cannot
// be cached.
func (s *Store) Put(ctx context.Context, p display.Projection, digest string) error {
	return s.PutAll(ctx, []display.Projection{p}, digest)
}

// PutAll caches projections in one transaction.
func (s *Store) PutAll(ctx context.Context, ps []display.Projection, digest string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO displays(recipe_id,digest,payload,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range ps {
		id, ok := p.Location()
		if !ok {
			return fmt.Errorf("displaycache: projection has no recipe id")
		}
		raw, err := display.Encode(p)
		if err != nil {
			return fmt.Errorf("displaycache: encode %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, id, digest, s.enc.EncodeAll(raw, nil), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, recipeID string) (Entry, error) {
	var (
		digest, updated string
		payload         []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT digest,payload,updated_at FROM displays WHERE recipe_id=?`, recipeID).Scan(&digest, &payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	raw, err := s.dec.DecodeAll(payload, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("displaycache: %s: %w", recipeID, err)
	}
	p, err := display.Decode(raw)
	if err != nil {
		return Entry{}, fmt.Errorf("displaycache: %s: %w", recipeID, err)
	}
	at, _ := time.Parse(time.RFC3339Nano, updated)
	return Entry{Projection: p, Digest: digest, UpdatedAt: at}, nil
}

// IDs lists cached recipe ids in order.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT recipe_id FROM displays ORDER BY recipe_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, recipeID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM displays WHERE recipe_id=?`, recipeID)
	return err
}

// Prune drops projections built from any digest other than keep and returns
// how many were removed.
func (s *Store) Prune(ctx context.Context, keep string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM displays WHERE digest<>?`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordCatalogs stores the digests of the catalogs the cache was warmed
// from.
func (s *Store) RecordCatalogs(ctx context.Context, digests map[string]string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for name, d := range digests {
		if name == "" || d == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO catalogs(name,digest,updated_at) VALUES(?,?,?)`, name, d, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name=?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return d, err
}
