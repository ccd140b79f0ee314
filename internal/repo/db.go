// Package repo owns all persistent state for supercheck-core: the SQLite
// connection, schema migrations, and the query methods the queue, scheduler,
// dispatcher, and alert engine use to read and write jobs, runs, monitors,
// monitor results, and alert history.
package repo

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/xerrors"
)

const (
	// sqliteJournalMode enables concurrent reads during writes.
	sqliteJournalMode = "WAL"

	// sqliteBusyTimeoutMS controls how long a writer waits for a lock before
	// SQLite returns SQLITE_BUSY.
	sqliteBusyTimeoutMS = 5000
)

// Open opens a SQLite database at path with the pragmas supercheck-core
// relies on: WAL journaling so scheduler polling and dispatcher writes don't
// lock each other out, foreign keys enforced, and a busy timeout so
// concurrent writers retry instead of failing immediately.
func Open(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	if log != nil {
		log.Debugw("opening database", "path", path, logging.FieldSymbol, logging.SymbolDB)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, xerrors.Wrapf(err, "failed to create database directory: %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "failed to open database at %s", path)
	}

	if _, err := db.Exec("PRAGMA journal_mode = " + sqliteJournalMode); err != nil {
		db.Close()
		return nil, xerrors.Wrapf(err, "failed to enable %s journal mode for %s", sqliteJournalMode, path)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, xerrors.Wrapf(err, "failed to enable foreign keys for %s", path)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, xerrors.Wrapf(err, "failed to set busy timeout to %dms for %s", sqliteBusyTimeoutMS, path)
	}

	if log != nil {
		log.Infow("database opened", "path", path, "wal_mode", true, "foreign_keys", true, logging.FieldSymbol, logging.SymbolDB)
	}

	return db, nil
}

// OpenWithMigrations opens the database and applies any pending migrations,
// the entry point `supercheck serve` uses (`supercheck migrate` calls Open
// and Migrate itself).
func OpenWithMigrations(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(path, log)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db, log); err != nil {
		db.Close()
		return nil, xerrors.Wrapf(err, "failed to run migrations for %s", path)
	}

	return db, nil
}
