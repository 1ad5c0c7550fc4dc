package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"taskline/internal/task"
)

// Save file layout, one field per line:
//
//	<task count>
//	<T|D|E>
//	<0|1>
//	<description>
//	<time>        (D and E only)
//	...           (repeated task count times)

// Encode writes tasks in save file layout.
func Encode(w io.Writer, tasks []task.Task) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(tasks))
	for _, t := range tasks {
		done := "0"
		if t.Done {
			done = "1"
		}
		fmt.Fprintf(bw, "%s\n%s\n%s\n", t.Kind.Tag(), done, t.Description)
		if t.Kind.HasTime() {
			fmt.Fprintf(bw, "%s\n", t.Time)
		}
	}
	return bw.Flush()
}

// Decode reads a task list written by Encode. Anything after the last
// declared task is ignored.
func Decode(r io.Reader) (*task.List, error) {
	lr := &lineReader{sc: bufio.NewScanner(r)}
	countLine, err := lr.next("task count")
	if err != nil {
		return nil, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(countLine))
	if err != nil || count < 0 {
		return nil, lr.corrupt(fmt.Sprintf("task count %q is not a non-negative integer", countLine))
	}
	list := task.NewList()
	for i := 0; i < count; i++ {
		t, err := lr.task()
		if err != nil {
			return nil, err
		}
		list.Add(t)
	}
	return list, nil
}

type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func (lr *lineReader) next(field string) (string, error) {
	if !lr.sc.Scan() {
		if err := lr.sc.Err(); err != nil {
			return "", err
		}
		return "", &CorruptSaveFileError{Line: lr.line + 1, Reason: "unexpected end of file, expected " + field}
	}
	lr.line++
	return strings.TrimSuffix(lr.sc.Text(), "\r"), nil
}

func (lr *lineReader) corrupt(reason string) error {
	return &CorruptSaveFileError{Line: lr.line, Reason: reason}
}

func (lr *lineReader) task() (task.Task, error) {
	tag, err := lr.next("task type")
	if err != nil {
		return task.Task{}, err
	}
	kind, ok := task.KindFromTag(tag)
	if !ok {
		return task.Task{}, lr.corrupt(fmt.Sprintf("unknown task type %q", tag))
	}
	flag, err := lr.next("completion flag")
	if err != nil {
		return task.Task{}, err
	}
	var done bool
	switch flag {
	case "0":
	case "1":
		done = true
	default:
		return task.Task{}, lr.corrupt(fmt.Sprintf("completion flag %q is not 0 or 1", flag))
	}
	desc, err := lr.next("description")
	if err != nil {
		return task.Task{}, err
	}
	t := task.Task{Kind: kind, Description: desc, Done: done}
	if kind.HasTime() {
		if t.Time, err = lr.next("time"); err != nil {
			return task.Task{}, err
		}
	}
	if err := t.Validate(); err != nil {
		return task.Task{}, lr.corrupt(err.Error())
	}
	return t, nil
}

// Codec persists a task list to a single file.
type Codec struct {
	Path string
}

func New(path string) Codec {
	return Codec{Path: path}
}

// Load reads the save file. A missing, unreadable or non-regular file is an
// InvalidFilePathError; a malformed one is a CorruptSaveFileError.
func (c Codec) Load() (*task.List, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, &InvalidFilePathError{Path: c.Path, Err: err}
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, &InvalidFilePathError{Path: c.Path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &InvalidFilePathError{Path: c.Path, Err: fmt.Errorf("%s is not a regular file", info.Mode().Type())}
	}
	list, err := Decode(f)
	if err != nil {
		var ce *CorruptSaveFileError
		switch {
		case errors.As(err, &ce):
			ce.Path = c.Path
			return nil, ce
		case errors.Is(err, bufio.ErrTooLong):
			return nil, &CorruptSaveFileError{Path: c.Path, Reason: err.Error()}
		default:
			return nil, &InvalidFilePathError{Path: c.Path, Err: err}
		}
	}
	return list, nil
}

// Save replaces the save file with tasks. The content is written to a
// temporary file next to Path and renamed over it, so a failed save leaves
// the previous file intact.
func (c Codec) Save(tasks []task.Task) error {
	dir, base := splitPath(c.Path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return &InvalidFilePathError{Path: c.Path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := Encode(tmp, tasks); err != nil {
		return fmt.Errorf("write save file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("write save file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write save file: %w", err)
	}
	if err := os.Rename(tmpName, c.Path); err != nil {
		return &InvalidFilePathError{Path: c.Path, Err: err}
	}
	committed = true
	return nil
}

func splitPath(path string) (dir, base string) {
	dir = filepath.Dir(path)
	base = filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		base = "tasks"
	}
	return dir, base
}
