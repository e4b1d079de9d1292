// Package store keeps named policies in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/domino14/noughts/policyio"
)

var ErrPolicyNotFound = errors.New("policy not found")

const schema = `
CREATE TABLE IF NOT EXISTS policies (
	name       TEXT PRIMARY KEY,
	solver     TEXT NOT NULL,
	marker     TEXT NOT NULL,
	checksum   TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	document   BLOB NOT NULL
)`

// Summary describes a stored policy without loading it.
type Summary struct {
	Name     string
	Solver   string
	Marker   string
	Checksum string
	Created  time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// an in-memory database lives only as long as its one connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	log.Debug().Str("path", path).Msg("opened-policy-store")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores doc under name, replacing any policy already saved there.
func (s *Store) Save(ctx context.Context, name string, doc *policyio.Document) error {
	b, err := policyio.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO policies (name, solver, marker, checksum, created_at, document)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	solver = excluded.solver,
	marker = excluded.marker,
	checksum = excluded.checksum,
	created_at = excluded.created_at,
	document = excluded.document`,
		name, doc.Solver, doc.Agent, doc.Checksum, doc.Created.Unix(), b)
	if err != nil {
		return fmt.Errorf("saving policy %q: %w", name, err)
	}
	log.Info().Str("name", name).Str("solver", doc.Solver).Int("entries", len(doc.Entries)).
		Msg("saved-policy")
	return nil
}

// Load returns the verified document stored under name.
func (s *Store) Load(ctx context.Context, name string) (*policyio.Document, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM policies WHERE name = ?`, name).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrPolicyNotFound, name)
	} else if err != nil {
		return nil, err
	}
	return policyio.Unmarshal(b)
}

// List summarizes the stored policies by name.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, solver, marker, checksum, created_at FROM policies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sm Summary
		var created int64
		if err := rows.Scan(&sm.Name, &sm.Solver, &sm.Marker, &sm.Checksum, &created); err != nil {
			return nil, err
		}
		sm.Created = time.Unix(created, 0).UTC()
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Delete removes the policy stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM policies WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrPolicyNotFound, name)
	}
	return nil
}
