package task_test

import (
	"errors"
	"testing"

	"taskline/internal/task"
)

func sample() *task.List {
	return task.NewList(
		task.NewToDo("read book"),
		task.NewDeadline("return book", "6th of JUNE 2024, 6pm"),
		task.NewEvent("book club", "Friday"),
	)
}

func TestRender(t *testing.T) {
	cases := []struct {
		task task.Task
		want string
	}{
		{task.NewToDo("read"), "[T][ ] read"},
		{task.Task{Kind: task.ToDo, Description: "read", Done: true}, "[T][X] read"},
		{task.NewDeadline("essay", "monday"), "[D][ ] essay (by: monday)"},
		{task.NewEvent("party", "1st of JANUARY 2000, 12am"), "[E][ ] party (at: 1st of JANUARY 2000, 12am)"},
	}
	for _, c := range cases {
		if got := c.task.String(); got != c.want {
			t.Fatalf("render: got %q want %q", got, c.want)
		}
	}
}

func TestKindTags(t *testing.T) {
	for _, k := range []task.Kind{task.ToDo, task.Deadline, task.Event} {
		back, ok := task.KindFromTag(k.Tag())
		if !ok || back != k {
			t.Fatalf("tag %s did not map back to %v", k.Tag(), k)
		}
	}
	if _, ok := task.KindFromTag("X"); ok {
		t.Fatalf("expected unknown tag")
	}
	if task.ToDo.HasTime() || !task.Deadline.HasTime() || !task.Event.HasTime() {
		t.Fatalf("unexpected HasTime")
	}
}

func TestValidate(t *testing.T) {
	if err := task.NewToDo("ok").Validate(); err != nil {
		t.Fatalf("valid todo: %v", err)
	}
	if err := task.NewToDo("   ").Validate(); err == nil {
		t.Fatalf("expected blank description error")
	}
	if err := (task.Task{Description: "x"}).Validate(); err == nil {
		t.Fatalf("expected kind error")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	l := sample()
	for i := 0; i < 2; i++ {
		got, err := l.Complete(2)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if !got.Done {
			t.Fatalf("expected done")
		}
	}
	if got := l.Tasks()[1].String(); got != "[D][X] return book (by: 6th of JUNE 2024, 6pm)" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestOutOfRangeIDs(t *testing.T) {
	l := sample()
	for _, id := range []int{0, -1, 4} {
		if _, err := l.Complete(id); !errors.Is(err, task.ErrNoCorrespondingTask) {
			t.Fatalf("complete %d: expected no corresponding task, got %v", id, err)
		}
		_, err := l.Delete(id)
		var nce *task.NoCorrespondingTaskError
		if !errors.As(err, &nce) || nce.ID != id {
			t.Fatalf("delete %d: got %v", id, err)
		}
	}
	if l.Size() != 3 {
		t.Fatalf("list changed on failed ops")
	}
	empty := task.NewList()
	if _, err := empty.CompleteID("1"); !errors.Is(err, task.ErrNoCorrespondingTask) {
		t.Fatalf("expected error on empty list, got %v", err)
	}
}

func TestDeleteRenumbers(t *testing.T) {
	l := sample()
	removed, err := l.Delete(2)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed.Description != "return book" {
		t.Fatalf("removed wrong task %v", removed)
	}
	if l.Size() != 2 {
		t.Fatalf("size %d", l.Size())
	}
	got, err := l.Get(2)
	if err != nil || got.Description != "book club" {
		t.Fatalf("former id 3 not at id 2: %v %v", got, err)
	}
	if _, err := l.Get(3); err == nil {
		t.Fatalf("expected id 3 to be gone")
	}
}

func TestStringIDs(t *testing.T) {
	l := sample()
	if _, err := l.DeleteID("two"); !errors.Is(err, task.ErrIncorrectParameterType) {
		t.Fatalf("expected incorrect parameter type, got %v", err)
	}
	var ipe *task.IncorrectParameterTypeError
	_, err := l.CompleteID("1.5")
	if !errors.As(err, &ipe) || ipe.Expected != "integer" || ipe.Value != "1.5" {
		t.Fatalf("unexpected %v", err)
	}
	if _, err := l.CompleteID(" 3 "); err != nil {
		t.Fatalf("complete by string: %v", err)
	}
	if _, err := l.DeleteID("-2"); !errors.Is(err, task.ErrNoCorrespondingTask) {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	l := task.NewList(
		task.NewToDo("buy milk"),
		task.NewToDo("walk dog"),
		task.NewDeadline("milk the cow", "dawn"),
	)
	res := l.Search("milk")
	if len(res) != 2 || res[0].Description != "buy milk" || res[1].Description != "milk the cow" {
		t.Fatalf("unexpected results %v", res)
	}
	if n := len(l.Search("")); n != 3 {
		t.Fatalf("empty keyword matched %d", n)
	}
	// rendered status and time are searchable too
	if n := len(l.Search("(by: dawn)")); n != 1 {
		t.Fatalf("time search matched %d", n)
	}
	if n := len(l.Search("[T]")); n != 2 {
		t.Fatalf("tag search matched %d", n)
	}
	if res := l.Search("nothing"); len(res) != 0 {
		t.Fatalf("expected no match")
	}
}

func TestTasksIsACopy(t *testing.T) {
	l := sample()
	snap := l.Tasks()
	snap[0].Description = "changed"
	snap = append(snap[:0], snap[1:]...)
	if got, _ := l.Get(1); got.Description != "read book" {
		t.Fatalf("snapshot mutation leaked: %v", got)
	}
	if l.Size() != 3 {
		t.Fatalf("size changed")
	}
	_ = snap
}
