package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// journalPragmas are set on every connection before the schema is applied.
var journalPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// migrations upgrade a journal one user_version at a time; migrations[i]
// moves version i to i+1.
var migrations = []struct {
	name string
	sql  string
}{
	{"index pass events by pass", `CREATE INDEX IF NOT EXISTS idx_pass_events_pass ON pass_events(run_id, pass)`},
}

// Store journals lowering runs: one row per run, its pass events, and
// the layer snapshot of a successful run.
type Store struct {
	db *sql.DB
}

// Open opens the journal at path, creating and migrating it as needed.
// ":memory:" gives a private in-process journal. Reopening an existing
// journal is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	// One connection: SQLite serializes writers, and an in-memory journal
	// must not be split across connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "prepare journal %s", path)
	}
	return &Store{db: db}, nil
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return errors.Wrap(err, "connect")
	}
	for _, pragma := range journalPragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "execute %q", pragma)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return errors.Wrap(err, "create tables")
	}
	return migrate(db)
}

// migrate applies the migrations newer than the journal's user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "read user_version")
	}
	for v := version; v < len(migrations); v++ {
		m := migrations[v]
		if _, err := db.Exec(m.sql); err != nil {
			return errors.Wrapf(err, "migration %d (%s)", v+1, m.name)
		}
	}
	if version >= len(migrations) {
		return nil
	}
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations)))
	return errors.Wrap(err, "set user_version")
}

// Close releases the journal. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// verifyPragma reports whether pragma name currently reads expected.
func (s *Store) verifyPragma(name, expected string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return errors.Wrapf(err, "query %s", name)
	}
	if got != expected {
		return errors.Newf("%s = %q, expected %q", name, got, expected)
	}
	return nil
}
