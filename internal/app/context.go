package app

import (
	"context"
	"database/sql"
	"fmt"

	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/journal"
	"taskline/internal/logging"
	"taskline/internal/migrate"
	"taskline/internal/session"
	"taskline/internal/telemetry"
)

// Overrides come from flags and the environment and win over taskline.yml.
type Overrides struct {
	File     string
	LogLevel string
}

// Runtime is everything a front end needs to drive one session.
type Runtime struct {
	Workspace string
	Config    *config.Config
	SaveFile  string
	Logger    logging.Logger
	Journal   *journal.Journal
	Session   *session.Session

	conn *sql.DB
}

// Resolve loads the workspace config, applies overrides, opens the journal
// when enabled and builds a session that is not yet set up.
func Resolve(ctx context.Context, workspace string, o Overrides) (*Runtime, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, fmt.Errorf("prepare workspace: %w", err)
	}

	rt := &Runtime{
		Workspace: workspace,
		Config:    cfg,
		SaveFile:  o.File,
		Logger:    logging.New(logging.LevelFromString(cfg.Log.Level)),
	}
	if rt.SaveFile == "" {
		rt.SaveFile = cfg.SaveFile(workspace)
	}

	opts := session.Options{Logger: rt.Logger}
	if cfg.Journal.Enabled {
		j, conn, err := openJournal(workspace)
		if err != nil {
			return nil, err
		}
		rt.conn = conn
		rt.Journal = &j
		opts.Recorder = j
	}
	counters, err := telemetry.NewCounters()
	if err != nil {
		rt.Logger.Warn("command counters unavailable", "error", err)
	} else {
		opts.Counters = counters
	}
	rt.Session = session.New(opts)
	rt.Logger.Debug("runtime resolved", "workspace", workspace, "save_file", rt.SaveFile, "journal", cfg.Journal.Enabled)
	return rt, nil
}

// OpenJournal opens the workspace journal without a session.
func OpenJournal(workspace string) (journal.Journal, func() error, error) {
	j, conn, err := openJournal(workspace)
	if err != nil {
		return journal.Journal{}, nil, err
	}
	return j, conn.Close, nil
}

func openJournal(workspace string) (journal.Journal, *sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return journal.Journal{}, nil, fmt.Errorf("open journal: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return journal.Journal{}, nil, fmt.Errorf("migrate journal: %w", err)
	}
	return journal.New(conn), conn, nil
}

// Start sets up the session on SaveFile and greets it. The returned
// responses are the setup result followed by the greeting, if any.
func (rt *Runtime) Start(ctx context.Context) ([]session.Response, error) {
	setup := rt.Session.Setup(ctx, rt.SaveFile)
	if rt.Session.Fatal() {
		return []session.Response{setup}, fmt.Errorf("%s", setup.Text)
	}
	return []session.Response{setup, rt.Session.Greet()}, nil
}

// Close releases the journal database.
func (rt *Runtime) Close() error {
	if rt.conn == nil {
		return nil
	}
	return rt.conn.Close()
}
