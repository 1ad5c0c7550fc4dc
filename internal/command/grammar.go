package command

// Kind identifies the operation a parsed Command represents.
type Kind int

const (
	ShowList Kind = iota + 1
	Exit
	AddTodo
	AddDeadline
	AddEvent
	Delete
	Complete
	Search
)

func (k Kind) String() string {
	switch k {
	case ShowList:
		return "list"
	case Exit:
		return "bye"
	case AddTodo:
		return "todo"
	case AddDeadline:
		return "deadline"
	case AddEvent:
		return "event"
	case Delete:
		return "delete"
	case Complete:
		return "done"
	case Search:
		return "find"
	default:
		return "unknown"
	}
}

// IsAdd reports whether k creates a task.
func (k Kind) IsAdd() bool {
	return k == AddTodo || k == AddDeadline || k == AddEvent
}

// Mutates reports whether executing k changes the task list.
func (k Kind) Mutates() bool {
	return k.IsAdd() || k == Delete || k == Complete
}

// Grammar describes the positional parameters of a command kind.
// Delimiters[i] separates parameter i from parameter i+1.
type Grammar struct {
	ParameterCount int
	Delimiters     []string
	SlotNames      []string
}

var keywords = map[string]Kind{
	"list":     ShowList,
	"bye":      Exit,
	"todo":     AddTodo,
	"event":    AddEvent,
	"deadline": AddDeadline,
	"delete":   Delete,
	"done":     Complete,
	"find":     Search,
}

var grammars = map[Kind]Grammar{
	AddTodo:     {ParameterCount: 1, SlotNames: []string{"description"}},
	AddDeadline: {ParameterCount: 2, Delimiters: []string{"/by"}, SlotNames: []string{"description", "due"}},
	AddEvent:    {ParameterCount: 2, Delimiters: []string{"/at"}, SlotNames: []string{"description", "time"}},
	Delete:      {ParameterCount: 1, SlotNames: []string{"task id"}},
	Complete:    {ParameterCount: 1, SlotNames: []string{"task id"}},
	Search:      {ParameterCount: 1, SlotNames: []string{"keyword"}},
}

// Lookup resolves a command keyword. Keywords are case-sensitive.
func Lookup(keyword string) (Kind, bool) {
	k, ok := keywords[keyword]
	return k, ok
}

// GrammarFor returns the parameter grammar for k. ShowList and Exit take no
// parameters and have no grammar.
func GrammarFor(k Kind) (Grammar, bool) {
	g, ok := grammars[k]
	if !ok {
		return Grammar{}, false
	}
	g.Delimiters = append([]string(nil), g.Delimiters...)
	g.SlotNames = append([]string(nil), g.SlotNames...)
	return g, true
}

// Usage returns the syntax line for k, e.g. "deadline <description> /by <due>".
func Usage(k Kind) string {
	g, ok := grammars[k]
	if !ok {
		return k.String()
	}
	usage := k.String()
	for i, name := range g.SlotNames {
		if i > 0 {
			usage += " " + g.Delimiters[i-1]
		}
		usage += " <" + name + ">"
	}
	return usage
}
