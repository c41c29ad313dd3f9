// Package dict implements the correction dictionary applied to transcript
// text: an ordered list of wrong=>correct replacement rules loaded from a
// plain text file that non-engineers edit by hand.
//
// Rules apply in file order as literal substring replacements, each rule
// operating on the output of the previous one. There is a single pass over
// the rules, never a fixpoint: text produced by an earlier rule's
// replacement is still eligible to match a later rule, so a dictionary can
// reintroduce a pattern it already corrected. Applying a table twice is not
// guaranteed to equal applying it once.
package dict

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

const separator = "=>"

var ErrResourceUnavailable = errors.New("dictionary resource unavailable")

// MalformedLineError reports a non-blank dictionary line without the
// wrong=>correct separator. Only returned when parsing with Strict.
type MalformedLineError struct {
	Line    int
	Content string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("dictionary line %d: missing %q in %q", e.Line, separator, e.Content)
}

// Rule replaces every occurrence of Wrong with Correct. An empty Correct
// deletes the matched text.
type Rule struct {
	Wrong   string
	Correct string
}

// Table is an immutable ordered set of correction rules. A nil or empty
// table applies as the identity.
type Table struct {
	rules []Rule
}

type ParseOption func(*parseConfig)

type parseConfig struct {
	strict bool
}

// Strict makes parsing fail on non-blank lines without the separator
// instead of skipping them.
func Strict() ParseOption {
	return func(c *parseConfig) {
		c.strict = true
	}
}

// New builds a table from rules already in application order. Rules with an
// empty Wrong are dropped, they would match everywhere.
func New(rules ...Rule) *Table {
	t := &Table{rules: make([]Rule, 0, len(rules))}
	for _, rule := range rules {
		if rule.Wrong == "" {
			continue
		}
		t.rules = append(t.rules, rule)
	}
	return t
}

// Parse reads one wrong=>correct rule per line, preserving line order.
// Lines are trimmed of surrounding whitespace; blank lines are skipped. The
// split happens on the first separator, so neither side may contain one.
// Non-blank lines without a separator are skipped, or fail the parse with a
// *MalformedLineError when Strict is set.
func Parse(r io.Reader, options ...ParseOption) (*Table, error) {
	cfg := parseConfig{}
	for _, option := range options {
		option(&cfg)
	}

	t := &Table{}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		wrong, correct, found := strings.Cut(text, separator)
		if !found {
			if cfg.strict {
				return nil, &MalformedLineError{Line: line, Content: text}
			}
			continue
		}
		if wrong == "" {
			continue
		}

		t.rules = append(t.rules, Rule{Wrong: wrong, Correct: correct})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}

	return t, nil
}

// Load parses the dictionary file at path. An unreadable file fails with an
// error matching ErrResourceUnavailable; callers that can live without
// corrections may fall back to New() for an identity table.
func Load(path string, options ...ParseOption) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	defer f.Close()

	t, err := Parse(f, options...)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return t, nil
}

// Apply rewrites text by running every rule in table order. Each rule
// replaces all non-overlapping occurrences of its Wrong string in the
// output of the previous rule. When no rule matches, the input comes back
// unchanged.
func (t *Table) Apply(text string) string {
	if t == nil {
		return text
	}
	for _, rule := range t.rules {
		text = strings.ReplaceAll(text, rule.Wrong, rule.Correct)
	}
	return text
}

// Rules returns a copy of the rules in application order.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	return slices.Clone(t.rules)
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Current returns the table itself, letting a fixed table stand in where a
// reloadable snapshot source is accepted.
func (t *Table) Current() *Table {
	return t
}
