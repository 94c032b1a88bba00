package proto

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Command tags accepted on the wire. The tag is the first pipe field of a
// newline-terminated line.
const (
	TagName          = "name"
	TagRoll          = "roll"
	TagMove          = "move"
	TagUpdateToken   = "update_token"
	TagUpdateMap     = "update_map"
	TagUpdateAccount = "update_account"
	TagPlayMusic     = "play_music"
	TagMenacing      = "menacing"
	TagRoundabout    = "roundabout"
	TagTurnCounter   = "turncounter"
	TagExit          = "exit"
)

// Server-originated tags.
const (
	TagLoginSuccess = "login_success"
	TagLoginCreated = "login_created"
	TagLoginFailure = "login_failure"
)

// FieldSep separates fields within a command. The protocol has no escape
// mechanism; clients refuse input containing the separator.
const FieldSep = "|"

// maxLineBytes bounds a single command line. Character-sheet backstories are
// the largest legitimate payload and sit far below this.
const maxLineBytes = 64 * 1024

// Command is one parsed protocol line: a tag plus its ordered argument
// fields, with the tag stripped.
type Command struct {
	Tag  string
	Args []string
	Raw  string
}

// ParseLine splits a complete line into a Command. The boolean is false for
// blank lines, which carry nothing and are skipped by callers.
func ParseLine(line string) (Command, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Command{}, false
	}
	fields := strings.Split(line, FieldSep)
	return Command{Tag: fields[0], Args: fields[1:], Raw: line}, true
}

// Arg returns the argument at index i or the empty string when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Int parses the argument at index i as a decimal integer.
func (c Command) Int(i int) (int, error) {
	raw := c.Arg(i)
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("field %d of %s: %q is not an integer", i+1, c.Tag, raw)
	}
	return v, nil
}

// Float parses the argument at index i as a decimal float.
func (c Command) Float(i int) (float64, error) {
	raw := c.Arg(i)
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("field %d of %s: %q is not a number", i+1, c.Tag, raw)
	}
	return v, nil
}

// Build assembles a single wire line from a tag and its fields, without the
// trailing newline. Writers append the newline when flushing.
func Build(tag string, fields ...string) string {
	if len(fields) == 0 {
		return tag
	}
	return tag + FieldSep + strings.Join(fields, FieldSep)
}

// Itoa is strconv.Itoa re-exported so builders read uniformly at call sites.
func Itoa(v int) string {
	return strconv.Itoa(v)
}

// Ftoa renders a float field with the shortest round-tripping form.
func Ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NewLineScanner wraps a connection in a scanner that only ever yields
// complete newline-terminated commands. Splitting whatever a single read
// returns mis-parses fragments that straddle a read boundary; buffering
// here removes that failure mode.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), maxLineBytes)
	return sc
}
