// Package db is the SQLite store behind the development backend: saved maps
// and run results, with the schema managed by embedded migrations.
package db

import (
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/patrol.report/internal/monitoring"
	"github.com/banshee-data/patrol.report/internal/timeutil"
)

// ErrNotFound is returned when a map or result ID has no record.
var ErrNotFound = errors.New("record not found")

// DB wraps the SQLite handle.
type DB struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// NewDB opens (creating if needed) the database at path and applies any
// pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDB opens the database without touching the schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite permits a single writer.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &DB{DB: sqlDB, path: path, clock: timeutil.RealClock{}}, nil
}

// SetClock replaces the clock used for createdAt stamps.
func (db *DB) SetClock(c timeutil.Clock) {
	db.clock = c
}

func (db *DB) now() string {
	return db.clock.Now().UTC().Format(time.RFC3339)
}

// AttachAdminRoutes mounts the tsweb debug index on mux with a tailsql
// console and a backup download.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Patrol dev DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Download a gzipped snapshot of the database", http.HandlerFunc(db.handleBackup))
	return nil
}

func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "patrol-backup-")
	if err != nil {
		http.Error(w, "Failed to create backup", http.StatusInternalServerError)
		monitoring.Errorf("backup dir: %v", err)
		return
	}
	defer os.RemoveAll(dir)

	backupPath := filepath.Join(dir, fmt.Sprintf("patrol-backup-%d.db", db.clock.Now().Unix()))
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, "Failed to create backup", http.StatusInternalServerError)
		monitoring.Errorf("backup %s: %v", backupPath, err)
		return
	}

	f, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, "Failed to open backup", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(backupPath)+".gz"))
	gz := gzip.NewWriter(w)
	if _, err := io.Copy(gz, f); err != nil {
		monitoring.Errorf("streaming backup: %v", err)
	}
	if err := gz.Close(); err != nil {
		monitoring.Errorf("closing backup stream: %v", err)
	}
}
