// Package command parses chat text into bot commands.
package command

import "strings"

// DefaultPrefix marks a chat message as a command.
const DefaultPrefix = "!"

// Verb names a command. Verbs are always lower case.
type Verb string

// Known verbs.
const (
	VerbUser      Verb = "user"
	VerbGroupRank Verb = "grouprank"
	VerbUserRank  Verb = "userrank"
	VerbAllTime   Verb = "alltime"
	VerbMonthly   Verb = "monthly"
	VerbHelp      Verb = "help"
)

// Command is a parsed chat command.
type Command struct {
	Verb Verb
	Args []string
}

// Arg returns the i-th argument or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Rest joins the arguments from i onward with single spaces.
func (c Command) Rest(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// Parse strips prefix from body and splits the rest on whitespace. The verb
// is lower-cased; arguments keep their case. ok is false when body does not
// start with prefix. A body holding only the prefix parses to an empty verb.
func Parse(body, prefix string) (cmd Command, ok bool) {
	if prefix == "" || !strings.HasPrefix(body, prefix) {
		return Command{}, false
	}
	fields := strings.Fields(body[len(prefix):])
	if len(fields) == 0 {
		return Command{}, true
	}
	cmd.Verb = Verb(strings.ToLower(fields[0]))
	if len(fields) > 1 {
		cmd.Args = fields[1:]
	}
	return cmd, true
}
