package command

import (
	"strconv"
	"strings"
)

// Command is one parsed slash command. Name is canonical: aliases such as
// /o or /ls resolve to the command they stand for, and Alias keeps the
// spelling that was typed.
type Command struct {
	Name      string
	Alias     string
	Args      []string
	Raw       string
	Remainder string
}

var aliases = map[string]string{
	"o":       "open",
	"ls":      "tabs",
	"version": "about",
	"?":       "help",
	"exit":    "quit",
	"q":       "quit",
}

// Parse parses a line that starts with "/". Anything else is a navigation
// target and reports false.
func Parse(input string) (Command, bool) {
	trimmed := strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, false
	}
	raw := strings.TrimSpace(trimmed[1:])
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Command{Raw: raw}, true
	}
	alias := strings.ToLower(fields[0])
	name := alias
	if canonical, ok := aliases[alias]; ok {
		name = canonical
	}
	return Command{
		Name:      name,
		Alias:     alias,
		Args:      fields[1:],
		Raw:       raw,
		Remainder: remainderAfterTokens(raw, 1),
	}, true
}

// KeyValue splits "/set key some value" into the key and the rest of the
// line with inner spacing preserved.
func (c Command) KeyValue() (key, value string, ok bool) {
	if len(c.Args) < 2 {
		return "", "", false
	}
	return c.Args[0], remainderAfterTokens(c.Raw, 2), true
}

// Position reads the first argument as a 1-based list position and returns
// it zero-based. ok is false when there is no argument or it is not a
// positive integer.
func (c Command) Position() (int, bool) {
	if len(c.Args) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(c.Args[0])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

func remainderAfterTokens(raw string, count int) string {
	i := 0
	for remaining := count; remaining > 0 && i < len(raw); remaining-- {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		for i < len(raw) && !isSpace(raw[i]) {
			i++
		}
	}
	if i >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[i:])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}
