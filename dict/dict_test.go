package dict_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/subfine/subfine/dict"
)

func TestApplyEmptyTableIsIdentity(t *testing.T) {
	t.Parallel()

	table := dict.New()
	for _, text := range []string{"", "hello", "房地美公司", "a=>b"} {
		if got := table.Apply(text); got != text {
			t.Errorf("Apply(%q) = %q, want input unchanged", text, got)
		}
	}
}

func TestApplyNilTableIsIdentity(t *testing.T) {
	t.Parallel()

	var table *dict.Table
	if got := table.Apply("text"); got != "text" {
		t.Errorf("Apply on nil table = %q, want %q", got, "text")
	}
	if table.Len() != 0 {
		t.Errorf("Len on nil table = %d, want 0", table.Len())
	}
}

func TestApplyNoMatchIsIdentity(t *testing.T) {
	t.Parallel()

	table := dict.New(
		dict.Rule{Wrong: "房地美", Correct: "房利美"},
		dict.Rule{Wrong: "聯準會", Correct: "聯準會(Fed)"},
	)

	text := "今天天氣很好"
	if got := table.Apply(text); got != text {
		t.Errorf("Apply(%q) = %q, want input unchanged", text, got)
	}
}

func TestApplyChainsSequentially(t *testing.T) {
	t.Parallel()

	table := dict.New(
		dict.Rule{Wrong: "A", Correct: "B"},
		dict.Rule{Wrong: "B", Correct: "C"},
	)

	if got := table.Apply("A"); got != "C" {
		t.Errorf(`Apply("A") = %q, want "C" (later rules run on earlier output)`, got)
	}
}

func TestApplyReplacesAllOccurrences(t *testing.T) {
	t.Parallel()

	table := dict.New(dict.Rule{Wrong: "A", Correct: "B"})

	if got := table.Apply("AxA"); got != "BxB" {
		t.Errorf(`Apply("AxA") = %q, want "BxB"`, got)
	}
}

func TestApplyIsNotIdempotent(t *testing.T) {
	t.Parallel()

	// The second rule's output matches the first rule's pattern, but only
	// on the next application: a single Apply is one pass over the rules,
	// so correcting twice can keep rewriting.
	table := dict.New(
		dict.Rule{Wrong: "B", Correct: "C"},
		dict.Rule{Wrong: "A", Correct: "B"},
	)

	once := table.Apply("A")
	if once != "B" {
		t.Fatalf(`first Apply("A") = %q, want "B"`, once)
	}
	twice := table.Apply(once)
	if twice != "C" {
		t.Fatalf("second Apply(%q) = %q, want %q", once, twice, "C")
	}
	if once == twice {
		t.Fatal("expected repeated application to differ, idempotence is not part of the contract")
	}
}

func TestApplyEmptyCorrectDeletes(t *testing.T) {
	t.Parallel()

	table, err := dict.Parse(strings.NewReader("嗯嗯=>\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := table.Apply("嗯嗯好的嗯嗯"); got != "好的" {
		t.Errorf(`Apply = %q, want "好的"`, got)
	}
}

func TestLoadAppliesCompanyNameCorrection(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "error_dict.txt")
	if err := os.WriteFile(path, []byte("房地美=>房利美\n"), 0o644); err != nil {
		t.Fatalf("writing dictionary: %v", err)
	}

	table, err := dict.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := table.Apply("房地美公司"); got != "房利美公司" {
		t.Errorf(`Apply("房地美公司") = %q, want "房利美公司"`, got)
	}
}

func TestParseSkipsBlankAndMalformedLines(t *testing.T) {
	t.Parallel()

	content := "房地美=>房利美\n\nfoobar\n聯準會=>聯準會(Fed)\n"
	table, err := dict.Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []dict.Rule{
		{Wrong: "房地美", Correct: "房利美"},
		{Wrong: "聯準會", Correct: "聯準會(Fed)"},
	}
	got := table.Rules()
	if len(got) != len(want) {
		t.Fatalf("got %d rules, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rule %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseStrictFailsOnMalformedLine(t *testing.T) {
	t.Parallel()

	content := "房地美=>房利美\n\nfoobar\n"
	_, err := dict.Parse(strings.NewReader(content), dict.Strict())
	if err == nil {
		t.Fatal("expected error for malformed line in strict mode")
	}

	var malformed *dict.MalformedLineError
	if !errors.As(err, &malformed) {
		t.Fatalf("error %v is not a *MalformedLineError", err)
	}
	if malformed.Line != 3 {
		t.Errorf("malformed line number = %d, want 3", malformed.Line)
	}
	if malformed.Content != "foobar" {
		t.Errorf("malformed content = %q, want %q", malformed.Content, "foobar")
	}
}

func TestParseSplitsOnFirstSeparator(t *testing.T) {
	t.Parallel()

	table, err := dict.Parse(strings.NewReader("a=>b=>c\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	rules := table.Rules()
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	want := dict.Rule{Wrong: "a", Correct: "b=>c"}
	if rules[0] != want {
		t.Errorf("rule = %+v, want %+v", rules[0], want)
	}
}

func TestParseDropsEmptyPattern(t *testing.T) {
	t.Parallel()

	table, err := dict.Parse(strings.NewReader("=>everywhere\nok=>fine\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if table.Len() != 1 {
		t.Fatalf("got %d rules, want 1 (empty pattern dropped)", table.Len())
	}
	if got := table.Apply("x"); got != "x" {
		t.Errorf("Apply(%q) = %q, empty pattern must not match", "x", got)
	}
}

func TestParseHandlesCRLF(t *testing.T) {
	t.Parallel()

	table, err := dict.Parse(strings.NewReader("a=>b\r\nc=>d\r\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := table.Apply("ac"); got != "bd" {
		t.Errorf(`Apply("ac") = %q, want "bd"`, got)
	}
}

func TestParsePreservesInnerWhitespace(t *testing.T) {
	t.Parallel()

	// Only the line ends get trimmed; spaces around the separator belong
	// to the rule.
	table, err := dict.Parse(strings.NewReader("  a => b  \n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	rules := table.Rules()
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	want := dict.Rule{Wrong: "a ", Correct: " b"}
	if rules[0] != want {
		t.Errorf("rule = %+v, want %+v", rules[0], want)
	}
}

func TestLoadMissingFileIsResourceUnavailable(t *testing.T) {
	t.Parallel()

	_, err := dict.Load(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if err == nil {
		t.Fatal("expected error for missing dictionary file")
	}
	if !errors.Is(err, dict.ErrResourceUnavailable) {
		t.Errorf("error %v does not match ErrResourceUnavailable", err)
	}
}

func TestNewDropsEmptyWrong(t *testing.T) {
	t.Parallel()

	table := dict.New(
		dict.Rule{Wrong: "", Correct: "boom"},
		dict.Rule{Wrong: "a", Correct: "b"},
	)
	if table.Len() != 1 {
		t.Errorf("Len = %d, want 1", table.Len())
	}
}

func TestTableCurrentReturnsSelf(t *testing.T) {
	t.Parallel()

	table := dict.New(dict.Rule{Wrong: "a", Correct: "b"})
	if table.Current() != table {
		t.Error("Current() should return the table itself")
	}
}

func TestDuplicateWrongAppliesInSequence(t *testing.T) {
	t.Parallel()

	table := dict.New(
		dict.Rule{Wrong: "a", Correct: "b"},
		dict.Rule{Wrong: "a", Correct: "c"},
	)

	// The first rule consumes every "a", the duplicate finds nothing.
	if got := table.Apply("aa"); got != "bb" {
		t.Errorf(`Apply("aa") = %q, want "bb"`, got)
	}
}
