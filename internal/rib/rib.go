// Package rib stores routes and ASN sets in SQLite and exposes them to
// policies as external types. The store is the host side of the external
// call table: a policy sees a Rib or AsnSet handle, the engine answers
// lookups out of the database.
package rib

import (
	"context"
	"database/sql"
	"fmt"
	"net/netip"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS routes (
	prefix  TEXT    NOT NULL PRIMARY KEY,
	family  INTEGER NOT NULL,
	masklen INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS routes_by_len ON routes (family, masklen);
CREATE TABLE IF NOT EXISTS asn_sets (
	name TEXT    NOT NULL,
	asn  INTEGER NOT NULL,
	PRIMARY KEY (name, asn)
);
`

// Store is a SQLite-backed route store. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates a store. Use ":memory:" for an ephemeral one.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("rib: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("rib: schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// AddRoute records one prefix.
func (s *Store) AddRoute(ctx context.Context, p netip.Prefix) error {
	p = p.Masked()
	family := 4
	if p.Addr().Is6() {
		family = 6
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO routes (prefix, family, masklen) VALUES (?, ?, ?)`,
		p.String(), family, p.Bits())
	return err
}

// AddToSet records one ASN under a named set.
func (s *Store) AddToSet(ctx context.Context, set string, asn uint32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO asn_sets (name, asn) VALUES (?, ?)`,
		set, asn)
	return err
}

// LongestMatch returns the most specific stored route covering p. The
// masklen index narrows candidates; containment is decided here because
// SQLite cannot compare address bits.
func (s *Store) LongestMatch(ctx context.Context, p netip.Prefix) (netip.Prefix, bool, error) {
	family := 4
	if p.Addr().Is6() {
		family = 6
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT prefix FROM routes WHERE family = ? AND masklen <= ? ORDER BY masklen DESC`,
		family, p.Bits())
	if err != nil {
		return netip.Prefix{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return netip.Prefix{}, false, err
		}
		cand, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, false, fmt.Errorf("rib: bad stored prefix %q: %w", raw, err)
		}
		if cand.Contains(p.Addr()) {
			return cand, true, nil
		}
	}
	return netip.Prefix{}, false, rows.Err()
}

// Covers reports whether any stored route covers p.
func (s *Store) Covers(ctx context.Context, p netip.Prefix) (bool, error) {
	_, ok, err := s.LongestMatch(ctx, p)
	return ok, err
}

// SetContains reports whether the named set holds the ASN.
func (s *Store) SetContains(ctx context.Context, set string, asn uint32) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM asn_sets WHERE name = ? AND asn = ?`, set, asn).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
