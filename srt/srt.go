// Package srt models SubRip subtitle files: parsing, rendering, timestamp
// shifting, chunk merging, and applying correction tables to cue text.
package srt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/subfine/subfine/dict"
)

// Cue is one subtitle block: an index line, a start --> end timestamp line,
// and the text lines below them.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Lines []string
}

// Parse reads SRT text into cues. Blocks are separated by blank lines;
// blocks with fewer than two lines are skipped as stray junk, anything
// larger must carry a valid index and timestamp line.
func Parse(s string) ([]Cue, error) {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var cues []Cue
	for _, block := range strings.Split(s, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			continue
		}

		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("parsing cue index %q: %w", lines[0], err)
		}

		start, end, err := parseCueTiming(lines[1])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", index, err)
		}

		cues = append(cues, Cue{
			Index: index,
			Start: start,
			End:   end,
			Lines: lines[2:],
		})
	}

	return cues, nil
}

// Render writes cues back out as SRT, blocks separated by a blank line,
// with a trailing newline.
func Render(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n", cue.Index, formatTimestamp(cue.Start), formatTimestamp(cue.End))
		for _, line := range cue.Lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Shift returns a copy of cues with offset added to every start and end.
func Shift(cues []Cue, offset time.Duration) []Cue {
	out := make([]Cue, len(cues))
	for i, cue := range cues {
		cue.Start += offset
		cue.End += offset
		out[i] = cue
	}
	return out
}

// Merge concatenates chunk cue lists into one, reindexing sequentially
// from 1.
func Merge(chunks ...[]Cue) []Cue {
	var merged []Cue
	index := 1
	for _, chunk := range chunks {
		for _, cue := range chunk {
			cue.Index = index
			merged = append(merged, cue)
			index++
		}
	}
	return merged
}

// Correct applies the table to cue text lines only. Index and timestamp
// lines are never eligible for replacement, so a dictionary rule can't
// corrupt cue timing.
func Correct(cues []Cue, table *dict.Table) []Cue {
	out := make([]Cue, len(cues))
	for i, cue := range cues {
		lines := make([]string, len(cue.Lines))
		for j, line := range cue.Lines {
			lines[j] = table.Apply(line)
		}
		cue.Lines = lines
		out[i] = cue
	}
	return out
}

func parseCueTiming(line string) (start, end time.Duration, err error) {
	from, to, found := strings.Cut(line, "-->")
	if !found {
		return 0, 0, fmt.Errorf("timing line %q: missing separator", line)
	}

	start, err = parseTimestamp(strings.TrimSpace(from))
	if err != nil {
		return 0, 0, fmt.Errorf("start timestamp: %w", err)
	}
	end, err = parseTimestamp(strings.TrimSpace(to))
	if err != nil {
		return 0, 0, fmt.Errorf("end timestamp: %w", err)
	}

	return start, end, nil
}

// parseTimestamp reads the HH:MM:SS,mmm form.
func parseTimestamp(s string) (time.Duration, error) {
	parts := strings.Split(strings.ReplaceAll(s, ",", ":"), ":")
	if len(parts) != 4 {
		return 0, fmt.Errorf("timestamp %q: not HH:MM:SS,mmm", s)
	}

	values := make([]int, 4)
	for i, part := range parts {
		value, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("timestamp %q: %w", s, err)
		}
		values[i] = value
	}

	return time.Duration(values[0])*time.Hour +
		time.Duration(values[1])*time.Minute +
		time.Duration(values[2])*time.Second +
		time.Duration(values[3])*time.Millisecond, nil
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d",
		ms/3_600_000,
		ms/60_000%60,
		ms/1_000%60,
		ms%1_000,
	)
}
