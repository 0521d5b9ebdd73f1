package delivery

import (
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/maraichr/reviewgate/pkg/models"
)

// MaxLineSpan is the widest range posted as a multi-line comment. Wider
// ranges collapse onto their end line.
const MaxLineSpan = 15

// Geometry is where a comment is anchored. Start is None for a single-line
// comment.
type Geometry struct {
	Start fn.Option[int]
	Line  int
}

func (g Geometry) StartPtr() *int {
	if g.Start.IsNone() {
		return nil
	}
	v := g.Start.UnwrapOr(g.Line)
	return &v
}

func (g Geometry) String() string {
	if g.Start.IsNone() {
		return fmt.Sprintf("%d", g.Line)
	}
	return fmt.Sprintf("%d-%d", g.Start.UnwrapOr(g.Line), g.Line)
}

// InitialGeometry computes the first-attempt anchor of a suggestion.
func InitialGeometry(s models.CodeSuggestion) Geometry {
	start, end := s.RelevantLinesStart, s.RelevantLinesEnd
	if start == end || end-start > MaxLineSpan {
		return Geometry{Start: fn.None[int](), Line: end}
	}
	return Geometry{Start: fn.Some(start), Line: end}
}

// attemptState is the line-geometry retry state of one suggestion.
type attemptState int

const (
	stateOriginal attemptState = iota
	stateEndCollapsed
	stateStartCollapsed
	stateExhausted
)

func (s attemptState) String() string {
	switch s {
	case stateOriginal:
		return "original"
	case stateEndCollapsed:
		return "end_collapsed"
	case stateStartCollapsed:
		return "start_collapsed"
	}
	return "exhausted"
}

func (s attemptState) next() attemptState {
	if s >= stateExhausted {
		return stateExhausted
	}
	return s + 1
}

// geometry returns the anchor used in state s. Exhausted has none.
func (s attemptState) geometry(sg models.CodeSuggestion) (Geometry, bool) {
	switch s {
	case stateOriginal:
		return InitialGeometry(sg), true
	case stateEndCollapsed:
		end := sg.RelevantLinesEnd
		return Geometry{Start: fn.Some(end), Line: end}, true
	case stateStartCollapsed:
		start := sg.RelevantLinesStart
		return Geometry{Start: fn.Some(start), Line: start}, true
	}
	return Geometry{}, false
}
