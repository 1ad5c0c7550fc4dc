package command

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingCommand  = errors.New("missing command")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// UnknownCommandError carries the unrecognised keyword.
type UnknownCommandError struct {
	Keyword string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("%s: I don't know what %q means", ErrUnknownCommand, e.Keyword)
}

func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }

// MissingArgumentError lists the empty parameter slots (0-based) of a command.
type MissingArgumentError struct {
	Kind    Kind
	Missing []int
}

func (e *MissingArgumentError) Error() string {
	g := grammars[e.Kind]
	names := make([]string, 0, len(e.Missing))
	for _, slot := range e.Missing {
		if slot < len(g.SlotNames) {
			names = append(names, g.SlotNames[slot])
		} else {
			names = append(names, fmt.Sprintf("parameter %d", slot+1))
		}
	}
	return fmt.Sprintf("%s: %s needs %s (usage: %s)",
		ErrMissingArgument, e.Kind, strings.Join(names, " and "), Usage(e.Kind))
}

func (e *MissingArgumentError) Unwrap() error { return ErrMissingArgument }
