package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"slices"

	perr "backtalk/internal/platform/errors"
	"backtalk/internal/platform/logger"

	_ "modernc.org/sqlite"
)

// SQLite is the durable Store implementation shared by both binaries.
// One row per key; list and set values are stored as JSON arrays so each
// primitive stays a single statement (or one short transaction for
// read-modify-write set adds).
type SQLite struct {
	db  *sql.DB
	log logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	k TEXT PRIMARY KEY,
	v BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Open opens (and migrates) the cache store at path.
// Use ":memory:" in tests. WAL and a busy timeout keep the API and the
// courier from tripping over each other on the shared file.
func Open(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeCache, "kv open %s", path)
	}
	// single connection: sqlite allows one writer, and :memory: databases
	// are per-connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeCache, "kv ping %s", path)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeCache, "kv migrate %s", path)
	}
	return &SQLite{db: db, log: *logger.Named("kv")}, nil
}

// Close closes the underlying database
func (s *SQLite) Close() error { return s.db.Close() }

// Get returns the raw value for key, ok=false when absent
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeCache, "kv get %s", key)
	}
	return v, true, nil
}

// Set upserts the value for key, last write wins
func (s *SQLite) Set(ctx context.Context, key string, val []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (k, v, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (k) DO UPDATE SET v = excluded.v, updated_at = CURRENT_TIMESTAMP`,
		key, val)
	return perr.WrapIf(err, perr.ErrorCodeCache, "kv set "+key)
}

// SetNX writes only when key is absent and reports whether this call won
func (s *SQLite) SetNX(ctx context.Context, key string, val []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT (k) DO NOTHING`,
		key, val)
	if err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeCache, "kv setnx %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeCache, "kv setnx %s", key)
	}
	return n > 0, nil
}

// Delete removes key; deleting an absent key is not an error
func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key)
	return perr.WrapIf(err, perr.ErrorCodeCache, "kv delete "+key)
}

// GetDel reads and deletes key in one transaction, for consume-once values
func (s *SQLite) GetDel(ctx context.Context, key string) ([]byte, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeCache, "kv getdel %s", key)
	}
	defer func() { _ = tx.Rollback() }()

	var v []byte
	err = tx.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeCache, "kv getdel %s", key)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key); err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeCache, "kv getdel %s", key)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeCache, "kv getdel %s", key)
	}
	return v, true, nil
}

// GetIDs returns the int64 list stored at key, ok=false when absent
func (s *SQLite) GetIDs(ctx context.Context, key string) ([]int64, bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	var ids []int64
	if err := json.Unmarshal(v, &ids); err != nil {
		return nil, false, perr.Wrapf(err, perr.ErrorCodeCache, "kv ids decode %s", key)
	}
	return ids, true, nil
}

// SetIDs stores ids at key as a JSON array, preserving order
func (s *SQLite) SetIDs(ctx context.Context, key string, ids []int64) error {
	v, err := json.Marshal(ids)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeCache, "kv ids encode %s", key)
	}
	return s.Set(ctx, key, v)
}

// AddIDs merges ids into the set at key, deduplicated and sorted ascending.
// The read-modify-write runs in one transaction so concurrent adds do not lose members.
func (s *SQLite) AddIDs(ctx context.Context, key string, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeCache, "kv addids %s", key)
	}
	defer func() { _ = tx.Rollback() }()

	var cur []int64
	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return perr.Wrapf(err, perr.ErrorCodeCache, "kv addids %s", key)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cur); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeCache, "kv addids decode %s", key)
		}
	}

	for _, id := range ids {
		if !slices.Contains(cur, id) {
			cur = append(cur, id)
		}
	}
	slices.Sort(cur)

	v, err := json.Marshal(cur)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeCache, "kv addids encode %s", key)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv (k, v, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (k) DO UPDATE SET v = excluded.v, updated_at = CURRENT_TIMESTAMP`,
		key, v); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeCache, "kv addids %s", key)
	}
	return perr.WrapIf(tx.Commit(), perr.ErrorCodeCache, "kv addids "+key)
}
