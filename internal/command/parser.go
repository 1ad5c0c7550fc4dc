package command

import "strings"

// Command is a parsed instruction. Params holds the raw parameter strings in
// grammar order; ShowList and Exit carry none.
type Command struct {
	Kind   Kind
	Params []string
}

// Param returns parameter i, or "" if absent.
func (c Command) Param(i int) string {
	if i < 0 || i >= len(c.Params) {
		return ""
	}
	return c.Params[i]
}

// Parse turns one line of user input into a Command.
//
// Tokens are whitespace separated. A token equal to the next expected
// delimiter closes the current parameter; any other token, including a
// delimiter seen out of order, is parameter text. Once the delimiters are
// used up every remaining token belongs to the last parameter.
func Parse(input string) (Command, error) {
	tokens := strings.Fields(input)
	if len(tokens) == 0 {
		return Command{}, ErrMissingCommand
	}
	kind, ok := Lookup(tokens[0])
	if !ok {
		return Command{}, &UnknownCommandError{Keyword: tokens[0]}
	}
	if kind == ShowList || kind == Exit {
		return Command{Kind: kind}, nil
	}

	g := grammars[kind]
	params := make([]string, g.ParameterCount)
	slot := 0
	var current []string
	for _, tok := range tokens[1:] {
		if slot < len(g.Delimiters) && tok == g.Delimiters[slot] {
			params[slot] = strings.Join(current, " ")
			current = current[:0]
			slot++
			continue
		}
		current = append(current, tok)
	}
	params[slot] = strings.Join(current, " ")

	var missing []int
	for i, p := range params {
		if p == "" {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return Command{}, &MissingArgumentError{Kind: kind, Missing: missing}
	}
	return Command{Kind: kind, Params: params}, nil
}
