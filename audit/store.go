// Package audit keeps an append-only firing-history log: a diagnostic
// side-channel recording when alarms actually fired, for operators to
// inspect after the fact. It deliberately never feeds back into
// alarmtimer.Manager at startup — schedules are never persisted across
// a restart, only their fired history is.
package audit

import (
	"embed"
	"fmt"
	"io/fs"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store records alarm firings to a sqlite database.
type Store struct {
	conn *sqlite.Conn
}

// Open opens (creating if necessary) the sqlite database at path and
// brings its schema up to date.
func Open(path string) (*Store, error) {
	conn, err := sqlite.OpenConn(path, 0)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	scripts, err := fs.Sub(migrations, "migrations")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: migrations: %w", err)
	}
	if err := migrate(conn, scripts); err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// RecordFiring appends one row recording that clock fired at firedAt.
func (s *Store) RecordFiring(clock string, firedAt time.Time) error {
	return sqlitex.Exec(
		s.conn,
		"insert into firings (clock, fired_at, recorded_at) values (?, ?, ?)",
		nil,
		clock,
		firedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
}

// FiringCount reports how many firings have been recorded for clock,
// for tests and diagnostics.
func (s *Store) FiringCount(clock string) (int, error) {
	var count int
	err := sqlitex.Exec(
		s.conn,
		"select count(*) from firings where clock = ?",
		func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
		clock,
	)
	return count, err
}
