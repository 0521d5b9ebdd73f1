// Package diffguard rejects suggestions whose lines fall outside the
// new-side hunks of a pull request diff.
package diffguard

import (
	"bytes"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/maraichr/reviewgate/pkg/models"
)

// Range is an inclusive new-side line range.
type Range struct {
	Start int
	End   int
}

func (r Range) overlaps(start, end int) bool {
	return start <= r.End && end >= r.Start
}

type fileEntry struct {
	removed bool
	// guarded is false when no parsable patch is available; any line is then
	// accepted.
	guarded bool
	ranges  []Range
}

// Guard answers whether a suggestion targets changed lines.
type Guard struct {
	files    map[string]fileEntry
	Unparsed []string
}

// New builds a guard from the changed files of a pull request.
func New(files []models.FileChange) *Guard {
	g := &Guard{files: make(map[string]fileEntry, len(files))}
	for _, f := range files {
		e := fileEntry{removed: f.Status == models.FileRemoved}
		if f.Patch != "" && !e.removed {
			ranges, err := HunkRanges(f.Filename, f.Patch)
			if err != nil {
				g.Unparsed = append(g.Unparsed, f.Filename)
			} else {
				e.guarded = true
				e.ranges = ranges
			}
		}
		g.files[f.Filename] = e
	}
	return g
}

// HunkRanges returns the new-side ranges covered by a file patch. Patches
// without file headers, as returned by most review APIs, are accepted.
func HunkRanges(path, patch string) ([]Range, error) {
	if !strings.HasPrefix(patch, "diff ") && !strings.HasPrefix(patch, "--- ") {
		patch = "--- a/" + path + "\n+++ b/" + path + "\n" + patch
	}
	if !strings.HasSuffix(patch, "\n") {
		patch += "\n"
	}

	parsed, _, err := gitdiff.Parse(bytes.NewReader([]byte(patch)))
	if err != nil {
		return nil, err
	}

	var out []Range
	for _, f := range parsed {
		for _, frag := range f.TextFragments {
			if frag.NewLines == 0 {
				continue
			}
			start := int(frag.NewPosition)
			out = append(out, Range{Start: start, End: start + int(frag.NewLines) - 1})
		}
	}
	return out, nil
}

// Reason explains why Allow rejected a suggestion.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonFileMissing Reason = "file_not_in_diff"
	ReasonFileRemoved Reason = "file_removed"
	ReasonOutsideHunk Reason = "lines_outside_diff"
)

// Allow reports whether s may be posted.
func (g *Guard) Allow(s models.CodeSuggestion) (bool, Reason) {
	e, ok := g.files[s.RelevantFile]
	switch {
	case !ok:
		return false, ReasonFileMissing
	case e.removed:
		return false, ReasonFileRemoved
	case !e.guarded:
		return true, ReasonNone
	}

	start, end := s.RelevantLinesStart, s.RelevantLinesEnd
	if end < start {
		start, end = end, start
	}
	for _, r := range e.ranges {
		if r.overlaps(start, end) {
			return true, ReasonNone
		}
	}
	return false, ReasonOutsideHunk
}

// Filter splits suggestions into allowed and rejected. Rejected entries are
// tagged DISCARDED_BY_SAFEGUARD so they never become fallbacks.
func (g *Guard) Filter(suggestions []models.CodeSuggestion) (kept, discarded []models.CodeSuggestion) {
	for _, s := range suggestions {
		if ok, _ := g.Allow(s); ok {
			kept = append(kept, s)
			continue
		}
		s.PriorityStatus = models.PriorityDiscardedBySafeguard
		discarded = append(discarded, s)
	}
	return kept, discarded
}
