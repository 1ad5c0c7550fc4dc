package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"taskline/internal/command"
	"taskline/internal/datetime"
	"taskline/internal/journal"
	"taskline/internal/logging"
	"taskline/internal/storage"
	"taskline/internal/task"
	"taskline/internal/telemetry"
)

const (
	greeting = "Hi, I'm Taskline! What can I do for you?"
	farewell = "GoodBye! Hope to see you again!"
)

var (
	ErrNotLoaded    = errors.New("no task list loaded")
	ErrInactive     = errors.New("not accepting commands")
	ErrUnusablePath = errors.New("save file cannot be used")
)

// Store loads and saves a task list. storage.Codec implements it.
type Store interface {
	Load() (*task.List, error)
	Save(tasks []task.Task) error
}

// Recorder receives one event per setup and per handled command.
// journal.Journal implements it.
type Recorder interface {
	Append(ctx context.Context, e journal.Event, payload journal.Payload) error
}

// Options configure a Session. Zero values are usable.
type Options struct {
	ID       string
	Logger   logging.Logger
	Recorder Recorder
	Counters *telemetry.Counters
	// OpenStore maps a save file path to a Store. Defaults to storage.New.
	OpenStore func(path string) Store
	// FormatTime renders the time parameter of deadlines and events.
	// Defaults to datetime.Format.
	FormatTime func(raw string) (string, error)
}

// Session wires parsing, the task list and the save file together. It starts
// inactive; Setup loads the list and Greet activates it. A Session is not
// safe for concurrent use.
type Session struct {
	id      string
	log     logging.Logger
	opts    Options
	path    string
	store   Store
	tasks   *task.List
	active  bool
	fatal   bool
	counter *telemetry.Counters
}

func New(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNull()
	}
	if opts.OpenStore == nil {
		opts.OpenStore = func(path string) Store { return storage.New(path) }
	}
	if opts.FormatTime == nil {
		opts.FormatTime = datetime.Format
	}
	return &Session{
		id:      opts.ID,
		log:     opts.Logger.With("session", opts.ID),
		opts:    opts,
		counter: opts.Counters,
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Path() string { return s.path }
func (s *Session) Active() bool { return s.active }
func (s *Session) Fatal() bool  { return s.fatal }
func (s *Session) Loaded() bool { return s.tasks != nil }

// Tasks returns a snapshot of the task list, or nil before Setup.
func (s *Session) Tasks() []task.Task {
	if s.tasks == nil {
		return nil
	}
	return s.tasks.Tasks()
}

// Setup loads the task list saved at path. If it cannot be loaded, an empty
// list is saved there instead and the load error is returned as a non-fatal
// error response. If that save fails too the session can never be activated.
func (s *Session) Setup(ctx context.Context, path string) Response {
	s.path = path
	s.store = s.opts.OpenStore(path)
	s.fatal = false

	var resp Response
	list, loadErr := s.store.Load()
	switch {
	case loadErr == nil:
		s.tasks = list
		resp = s.reply(fmt.Sprintf("Your task list was successfully loaded from:\n%s", path))
		s.log.Info("task list loaded", "path", path, "tasks", list.Size())
	default:
		s.tasks = task.NewList()
		if kept := s.keepCorrupt(loadErr); kept != "" {
			loadErr = fmt.Errorf("%w\nThe unreadable file was moved to:\n%s", loadErr, kept)
		}
		if err := s.store.Save(nil); err != nil {
			s.active = false
			s.fatal = true
			resp = s.replyErr(fmt.Errorf("%w: %w", ErrUnusablePath, err))
			s.log.Error("save file unusable", "path", path, "error", err)
		} else {
			resp = s.replyErr(fmt.Errorf("%w\nStarted a new task list at:\n%s", loadErr, path))
			s.log.Warn("started empty task list", "path", path, "error", loadErr)
		}
	}
	s.record(ctx, journal.Event{Type: journal.TypeSetup, IsError: resp.IsError}, journal.Payload{
		"path":  path,
		"fatal": s.fatal,
		"text":  resp.Text,
	})
	return resp
}

// keepCorrupt moves a corrupt save file aside so that starting a new list
// does not overwrite it. Earlier backups are never replaced: the first free
// name of <path>.corrupt, <path>.corrupt.1, ... is used. It returns the new
// location, or "" if nothing moved.
func (s *Session) keepCorrupt(loadErr error) string {
	if !errors.Is(loadErr, storage.ErrCorruptSaveFile) {
		return ""
	}
	info, err := os.Lstat(s.path)
	if err != nil || !info.Mode().IsRegular() {
		s.log.Warn("not moving save file that is not a regular file", "path", s.path)
		return ""
	}
	kept, err := freeName(s.path + ".corrupt")
	if err != nil {
		s.log.Warn("could not keep corrupt save file", "path", s.path, "error", err)
		return ""
	}
	if err := os.Rename(s.path, kept); err != nil {
		s.log.Warn("could not keep corrupt save file", "path", s.path, "error", err)
		return ""
	}
	return kept
}

func freeName(base string) (string, error) {
	name := base
	for i := 1; i <= 1000; i++ {
		if _, err := os.Lstat(name); errors.Is(err, os.ErrNotExist) {
			return name, nil
		} else if err != nil {
			return "", err
		}
		name = fmt.Sprintf("%s.%d", base, i)
	}
	return "", fmt.Errorf("too many backups of %s", base)
}

// Greet activates a set up session.
func (s *Session) Greet() Response {
	switch {
	case s.fatal:
		return s.replyErr(ErrUnusablePath)
	case s.tasks == nil:
		return s.replyErr(ErrNotLoaded)
	}
	s.active = true
	return s.reply(greeting)
}

// Handle parses and executes one line of input. Mutating commands are saved
// before Handle returns. A failed save does not undo the change.
func (s *Session) Handle(ctx context.Context, input string) Response {
	if !s.active {
		return s.replyErr(ErrInactive)
	}
	var resp Response
	kind := "invalid"
	mutates := false
	cmd, err := command.Parse(input)
	if err != nil {
		resp = s.replyErr(err)
	} else {
		kind = cmd.Kind.String()
		mutates = cmd.Kind.Mutates()
		text, err := s.execute(cmd)
		if err != nil {
			resp = s.replyErr(err)
		} else {
			resp = s.reply(text)
		}
	}
	if resp.IsError {
		s.log.Debug("command failed", "kind", kind, "error", resp.Text)
	} else {
		s.log.Debug("command handled", "kind", kind, "tasks", s.tasks.Size())
	}
	s.counter.Record(ctx, kind, resp.IsError)
	s.record(ctx, journal.Event{Type: journal.TypeCommand, Kind: kind, Input: input, IsError: resp.IsError}, journal.Payload{
		"mutates": mutates,
	})
	return resp
}

func (s *Session) execute(cmd command.Command) (string, error) {
	switch cmd.Kind {
	case command.AddTodo, command.AddDeadline, command.AddEvent:
		return s.addTask(cmd)
	case command.Complete:
		t, err := s.tasks.CompleteID(cmd.Param(0))
		if err != nil {
			return "", err
		}
		return s.persist(fmt.Sprintf("Got it! I've marked this task as done:\n%s", t))
	case command.Delete:
		t, err := s.tasks.DeleteID(cmd.Param(0))
		if err != nil {
			return "", err
		}
		return s.persist(fmt.Sprintf("Got it! I've removed this task from the list:\n%s\nNow you have %d task(s) in your list.",
			t, s.tasks.Size()))
	case command.Search:
		found := s.tasks.Search(cmd.Param(0))
		if len(found) == 0 {
			return "There are no matching tasks in your list!", nil
		}
		return numbered("Here are the matching task(s) in your list:", found), nil
	case command.ShowList:
		all := s.tasks.Tasks()
		if len(all) == 0 {
			return "Your list is empty!", nil
		}
		return numbered("Here are the task(s) in your list:", all), nil
	case command.Exit:
		s.active = false
		return farewell, nil
	default:
		return "", fmt.Errorf("%w: %s", command.ErrUnknownCommand, cmd.Kind)
	}
}

func (s *Session) addTask(cmd command.Command) (string, error) {
	desc := cmd.Param(0)
	var t task.Task
	switch cmd.Kind {
	case command.AddTodo:
		t = task.NewToDo(desc)
	case command.AddDeadline:
		t = task.NewDeadline(desc, s.formatTime(cmd.Param(1)))
	case command.AddEvent:
		t = task.NewEvent(desc, s.formatTime(cmd.Param(1)))
	default:
		return "", fmt.Errorf("%s does not add a task", cmd.Kind)
	}
	s.tasks.Add(t)
	return s.persist(fmt.Sprintf("Got it! I've added this task to the list:\n%s\nNow you have %d task(s) in your list.",
		t, s.tasks.Size()))
}

// formatTime falls back to the raw text when it is not a supported date.
func (s *Session) formatTime(raw string) string {
	formatted, err := s.opts.FormatTime(raw)
	if err != nil {
		s.log.Debug("keeping raw time", "time", raw, "error", err)
		return raw
	}
	return formatted
}

func (s *Session) persist(applied string) (string, error) {
	if err := s.store.Save(s.tasks.Tasks()); err != nil {
		s.log.Error("save failed after change", "path", s.path, "error", err)
		return "", &SaveError{Applied: applied, Err: err}
	}
	return applied, nil
}

func (s *Session) record(ctx context.Context, e journal.Event, payload journal.Payload) {
	if s.opts.Recorder == nil {
		return
	}
	e.SessionID = s.id
	if s.tasks != nil {
		e.TaskCount = s.tasks.Size()
	}
	if err := s.opts.Recorder.Append(ctx, e, payload); err != nil {
		s.log.Warn("journal append failed", "error", err)
	}
}

func numbered(header string, tasks []task.Task) string {
	var b strings.Builder
	b.WriteString(header)
	width := len(strconv.Itoa(len(tasks)))
	for i, t := range tasks {
		fmt.Fprintf(&b, "\n%0*d. %s", width, i+1, t)
	}
	return b.String()
}
