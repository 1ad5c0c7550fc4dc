package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DataDir is the per-workspace directory holding the journal and, by
// default, the save file.
const DataDir = ".taskline"

const journalName = "journal.db"

type Config struct {
	Workspace string
	// File overrides the journal location inside the workspace.
	File string
}

func (c Config) path() string {
	if c.File != "" {
		return c.File
	}
	return Path(c.Workspace)
}

// EnsureWorkspace creates the workspace data directory if missing and
// returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	dir := filepath.Join(workspace, DataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open opens the journal database on a single connection.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.File == "" {
		if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.path())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", cfg.path(), err)
	}
	return conn, nil
}

// Path returns the journal path for the workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, DataDir, journalName)
}
