package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"taskline/internal/config"
	"taskline/internal/journal"
)

func TestResolveDefaults(t *testing.T) {
	ws := t.TempDir()
	rt, err := Resolve(context.Background(), ws, Overrides{})
	require.NoError(t, err)
	defer rt.Close()

	require.Equal(t, filepath.Join(ws, ".taskline", "tasks.txt"), rt.SaveFile)
	require.NotNil(t, rt.Journal)
	require.FileExists(t, filepath.Join(ws, ".taskline", "journal.db"))
}

func TestResolveOverrides(t *testing.T) {
	ws := t.TempDir()
	yml := "storage:\n  file: lists/mine.txt\njournal:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(config.Path(ws), []byte(yml), 0o644))

	rt, err := Resolve(context.Background(), ws, Overrides{LogLevel: "debug"})
	require.NoError(t, err)
	defer rt.Close()
	require.Equal(t, filepath.Join(ws, "lists", "mine.txt"), rt.SaveFile)
	require.Nil(t, rt.Journal)
	require.Equal(t, "debug", rt.Config.Log.Level)

	other := filepath.Join(ws, "other.txt")
	rt2, err := Resolve(context.Background(), ws, Overrides{File: other})
	require.NoError(t, err)
	defer rt2.Close()
	require.Equal(t, other, rt2.SaveFile)
}

func TestResolveRejectsBadLevel(t *testing.T) {
	_, err := Resolve(context.Background(), t.TempDir(), Overrides{LogLevel: "loud"})
	require.Error(t, err)
}

func TestStartJournalsSetup(t *testing.T) {
	ws := t.TempDir()
	rt, err := Resolve(context.Background(), ws, Overrides{})
	require.NoError(t, err)
	defer rt.Close()

	responses, err := rt.Start(context.Background())
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.True(t, responses[0].IsError, "missing save file is reported")
	require.True(t, responses[1].IsActive)

	rt.Session.Handle(context.Background(), "todo journal me")
	events, err := rt.Journal.Latest(context.Background(), 10, journal.Filter{SessionID: rt.Session.ID()})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "todo", events[0].Kind)
}

func TestStartFatal(t *testing.T) {
	ws := t.TempDir()
	rt, err := Resolve(context.Background(), ws, Overrides{File: filepath.Join(ws, "missing", "dir", "tasks.txt")})
	require.NoError(t, err)
	defer rt.Close()

	responses, err := rt.Start(context.Background())
	require.Error(t, err)
	require.Len(t, responses, 1)
	require.True(t, strings.Contains(err.Error(), "save file cannot be used"))
	require.False(t, rt.Session.Active())
}
