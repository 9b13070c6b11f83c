// Package dataset stores processor output in a local sqlite database
package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/sammcj/actorglue/types"
)

// Record kinds written by the processors
const (
	KindGmail  = "gmail"
	KindRetell = "retell"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	payload    JSON NOT NULL
);
CREATE INDEX IF NOT EXISTS records_kind ON records(kind);
`

// Sink is the write side of a Store
type Sink interface {
	Push(ctx context.Context, kind string, payload map[string]any) (string, error)
}

// Record is one stored item
type Record struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload"`
}

// Store is a sqlite-backed dataset
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the dataset at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &types.DatasetError{Operation: "open", Message: path, Err: err}
	}
	// sqlite allows one writer; a single connection also keeps :memory: coherent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &types.DatasetError{Operation: "open", Message: "failed to create schema", Err: err}
	}

	return &Store{db: db, now: time.Now}, nil
}

// Push stores payload under kind and returns the new record id
func (s *Store) Push(ctx context.Context, kind string, payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", &types.DatasetError{Operation: "push", Message: "failed to encode payload", Err: err}
	}

	id := ulid.Make().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, kind, created_at, payload) VALUES (?, ?, ?, ?)`,
		id, kind, s.now().UTC(), string(data))
	if err != nil {
		return "", &types.DatasetError{Operation: "push", Message: "failed to insert record", Err: err}
	}
	return id, nil
}

// Recent returns up to limit records, newest first. An empty kind matches all.
func (s *Store) Recent(ctx context.Context, kind string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, kind, created_at, payload FROM records`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	// ulids sort by creation time
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &types.DatasetError{Operation: "recent", Message: "failed to query records", Err: err}
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			payload string
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.CreatedAt, &payload); err != nil {
			return nil, &types.DatasetError{Operation: "recent", Message: "failed to scan row", Err: err}
		}
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, &types.DatasetError{Operation: "recent", Message: "corrupt payload for " + rec.ID, Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.DatasetError{Operation: "recent", Message: "failed to read rows", Err: err}
	}
	return records, nil
}

// Count returns the number of records of kind. An empty kind counts all.
func (s *Store) Count(ctx context.Context, kind string) (int, error) {
	query := `SELECT COUNT(*) FROM records`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &types.DatasetError{Operation: "count", Message: "failed to count records", Err: err}
	}
	return n, nil
}

// Close releases database resources
func (s *Store) Close() error {
	return s.db.Close()
}
