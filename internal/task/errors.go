package task

import (
	"errors"
	"fmt"
)

var (
	ErrNoCorrespondingTask    = errors.New("no corresponding task")
	ErrIncorrectParameterType = errors.New("incorrect parameter type")
)

// NoCorrespondingTaskError reports an id outside 1..Size().
type NoCorrespondingTaskError struct {
	ID int
}

func (e *NoCorrespondingTaskError) Error() string {
	return fmt.Sprintf("%s: there is no task %d in your list", ErrNoCorrespondingTask, e.ID)
}

func (e *NoCorrespondingTaskError) Unwrap() error { return ErrNoCorrespondingTask }

// IncorrectParameterTypeError reports a parameter that could not be read as
// the expected type.
type IncorrectParameterTypeError struct {
	Expected string
	Value    string
}

func (e *IncorrectParameterTypeError) Error() string {
	return fmt.Sprintf("%s: expected %s but got %q", ErrIncorrectParameterType, e.Expected, e.Value)
}

func (e *IncorrectParameterTypeError) Unwrap() error { return ErrIncorrectParameterType }
