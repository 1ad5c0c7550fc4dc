package task

import (
	"strconv"
	"strings"
)

// List is an ordered task collection addressed by 1-based position. Ids are
// not stored: deleting a task shifts every later task down by one.
type List struct {
	tasks []Task
}

func NewList(tasks ...Task) *List {
	return &List{tasks: append([]Task(nil), tasks...)}
}

func (l *List) Size() int {
	return len(l.tasks)
}

// Tasks returns a copy of the tasks in list order.
func (l *List) Tasks() []Task {
	return append([]Task(nil), l.tasks...)
}

func (l *List) Add(t Task) Task {
	l.tasks = append(l.tasks, t)
	return t
}

// Get returns the task at id without modifying it.
func (l *List) Get(id int) (Task, error) {
	if err := l.check(id); err != nil {
		return Task{}, err
	}
	return l.tasks[id-1], nil
}

func (l *List) Complete(id int) (Task, error) {
	if err := l.check(id); err != nil {
		return Task{}, err
	}
	l.tasks[id-1].MarkDone()
	return l.tasks[id-1], nil
}

func (l *List) Delete(id int) (Task, error) {
	if err := l.check(id); err != nil {
		return Task{}, err
	}
	t := l.tasks[id-1]
	l.tasks = append(l.tasks[:id-1], l.tasks[id:]...)
	return t, nil
}

// CompleteID is Complete for an id given as text.
func (l *List) CompleteID(id string) (Task, error) {
	n, err := ParseID(id)
	if err != nil {
		return Task{}, err
	}
	return l.Complete(n)
}

// DeleteID is Delete for an id given as text.
func (l *List) DeleteID(id string) (Task, error) {
	n, err := ParseID(id)
	if err != nil {
		return Task{}, err
	}
	return l.Delete(n)
}

// Search returns the tasks whose rendered form contains keyword, in list
// order. An empty keyword matches every task.
func (l *List) Search(keyword string) []Task {
	var res []Task
	for _, t := range l.tasks {
		if strings.Contains(t.String(), keyword) {
			res = append(res, t)
		}
	}
	return res
}

// ParseID reads a task id typed by the user.
func ParseID(id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return 0, &IncorrectParameterTypeError{Expected: "integer", Value: id}
	}
	return n, nil
}

func (l *List) check(id int) error {
	if id < 1 || id > len(l.tasks) {
		return &NoCorrespondingTaskError{ID: id}
	}
	return nil
}
