package task

import (
	"fmt"
	"strings"
)

// Kind discriminates the task variants.
type Kind int

const (
	ToDo Kind = iota + 1
	Deadline
	Event
)

// Tag returns the single-letter code used in rendering and in save files.
func (k Kind) Tag() string {
	switch k {
	case ToDo:
		return "T"
	case Deadline:
		return "D"
	case Event:
		return "E"
	default:
		return "?"
	}
}

func (k Kind) String() string {
	switch k {
	case ToDo:
		return "todo"
	case Deadline:
		return "deadline"
	case Event:
		return "event"
	default:
		return "unknown"
	}
}

// KindFromTag is the inverse of Kind.Tag.
func KindFromTag(tag string) (Kind, bool) {
	switch tag {
	case "T":
		return ToDo, true
	case "D":
		return Deadline, true
	case "E":
		return Event, true
	default:
		return 0, false
	}
}

// HasTime reports whether tasks of kind k carry a time field.
func (k Kind) HasTime() bool {
	return k == Deadline || k == Event
}

// Task is one entry of a List. Time is only meaningful for Deadline and Event
// and holds either a formatted date phrase or the text the user typed.
type Task struct {
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
	Time        string `json:"time,omitempty"`
}

func NewToDo(description string) Task {
	return Task{Kind: ToDo, Description: description}
}

func NewDeadline(description, by string) Task {
	return Task{Kind: Deadline, Description: description, Time: by}
}

func NewEvent(description, at string) Task {
	return Task{Kind: Event, Description: description, Time: at}
}

// Validate checks the invariants a stored task must hold.
func (t Task) Validate() error {
	if _, ok := KindFromTag(t.Kind.Tag()); !ok {
		return fmt.Errorf("invalid task kind %d", t.Kind)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%s description is empty", t.Kind)
	}
	return nil
}

// MarkDone sets the completion flag. Marking a done task again is allowed.
func (t *Task) MarkDone() {
	t.Done = true
}

func (t Task) String() string {
	status := " "
	if t.Done {
		status = "X"
	}
	s := fmt.Sprintf("[%s][%s] %s", t.Kind.Tag(), status, t.Description)
	switch t.Kind {
	case Deadline:
		s += fmt.Sprintf(" (by: %s)", t.Time)
	case Event:
		s += fmt.Sprintf(" (at: %s)", t.Time)
	}
	return s
}
