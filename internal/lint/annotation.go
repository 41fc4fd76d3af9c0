// Package lint checks Python source for problems a beginner should see
// inline: undefined names and unused imports (pyflakes) and style issues
// (pycodestyle). The two tools report in different shapes; this package
// normalizes both into per-line Annotations with 0-based positions.
package lint

import (
	"fmt"
	"sort"
)

// Severity classifies an annotation for display.
type Severity string

const (
	// SeverityError marks a likely bug (undefined name, syntax error).
	SeverityError Severity = "error"
	// SeverityStyle marks a style rule violation.
	SeverityStyle Severity = "style"
)

// Annotation is one finding attached to a source line.
type Annotation struct {
	// Line is 0-based.
	Line int
	// Column is 0-based.
	Column int
	// Message is the human readable text shown to the user.
	Message string
	// Severity is error or style.
	Severity Severity
	// Code is the checker's rule code, if it has one (e.g. "E303").
	Code string
}

// String formats the annotation as "line:col: [code] message" with
// 1-based positions for logs.
func (a Annotation) String() string {
	if a.Code != "" {
		return fmt.Sprintf("%d:%d: %s %s", a.Line+1, a.Column+1, a.Code, a.Message)
	}
	return fmt.Sprintf("%d:%d: %s", a.Line+1, a.Column+1, a.Message)
}

// Report maps a 0-based line number to the annotations on that line, in
// the order the checker reported them.
type Report map[int][]Annotation

func (r Report) add(a Annotation) {
	r[a.Line] = append(r[a.Line], a)
}

// Lines returns the annotated line numbers in ascending order.
func (r Report) Lines() []int {
	lines := make([]int, 0, len(r))
	for line := range r {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Len returns the total number of annotations.
func (r Report) Len() int {
	n := 0
	for _, anns := range r {
		n += len(anns)
	}
	return n
}

// All returns every annotation ordered by line.
func (r Report) All() []Annotation {
	out := make([]Annotation, 0, r.Len())
	for _, line := range r.Lines() {
		out = append(out, r[line]...)
	}
	return out
}
