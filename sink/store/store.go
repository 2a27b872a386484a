// Package store persists messages to SQLite. Each row keeps the searchable
// fields in columns and the full message as zstd-compressed JSON.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/trickstertwo/xchat"
	"github.com/trickstertwo/xchat/sink/store/migrations"
)

// DefaultPath matches the layout the CLI uses when no path is configured.
const DefaultPath = "tmp/messages.sqlite3"

// publishedAtLayout is RFC 3339 with microseconds.
const publishedAtLayout = "2006-01-02T15:04:05.000000Z07:00"

var ErrNotConfigured = errors.New("store: not configured")

// Record is one stored row.
type Record struct {
	ID      int64
	Service string
	Message xchat.Message
}

// Store is a SQLite-backed message sink.
type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open creates the database file if needed and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	clean := filepath.Clean(path)
	if dir := filepath.Dir(clean); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}
	dsn := clean + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: run migrations: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, fmt.Errorf("store: zstd decoder: %w", err)
	}
	return &Store{db: db, enc: enc, dec: dec}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.dec.Close()
	_ = s.enc.Close()
	return s.db.Close()
}

// Insert stores msg and returns its row id.
func (s *Store) Insert(ctx context.Context, msg xchat.Message) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, ErrNotConfigured
	}
	data, err := xchat.EncodeMessage(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("store: encode message: %w", err)
	}
	blob := s.enc.EncodeAll(data, nil)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO msgs (zstd_compress_msg_json, service, author, msg, published_at) VALUES (?, ?, ?, ?, ?)`,
		blob,
		msg.Source.String(),
		msg.Author,
		msg.Text,
		msg.Timestamp.UTC().Format(publishedAtLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert message: %w", err)
	}
	return res.LastInsertId()
}

// Handle stores msg. It satisfies xchat.Handler.
func (s *Store) Handle(ctx context.Context, msg xchat.Message) error {
	_, err := s.Insert(ctx, msg)
	return err
}

// Recent returns up to limit rows, newest first, with messages decoded from
// their compressed blobs.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, service, zstd_compress_msg_json FROM msgs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec  Record
			blob []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Service, &blob); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		data, err := s.dec.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("store: decompress row %d: %w", rec.ID, err)
		}
		if rec.Message, err = xchat.DecodeMessage(ctx, data); err != nil {
			return nil, fmt.Errorf("store: decode row %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of stored messages, optionally for one source.
func (s *Store) Count(ctx context.Context, src xchat.Source) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotConfigured
	}
	var (
		n   int64
		err error
	)
	if src.Valid() {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM msgs WHERE service = ?`, src.String()).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM msgs`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// PublishedAt parses the stored timestamp column format.
func PublishedAt(v string) (time.Time, error) {
	return time.Parse(publishedAtLayout, v)
}
