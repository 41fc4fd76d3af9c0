package lint

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/microstorm/internal/process"
)

// Reporter receives findings from an undefined-name analyzer as they are
// produced. Line and column arguments are the analyzer's native 1-based
// values; zero means unknown.
type Reporter interface {
	// UnexpectedError is called when the file could not be processed.
	UnexpectedError(filename, message string)

	// SyntaxError is called when the source does not parse.
	SyntaxError(filename, message string, line, column int, source string)

	// Flake is called for an ordinary finding, formatted by the analyzer
	// as "filename:line[:col]: message".
	Flake(message string)
}

// Analyzer runs an undefined-name analysis and pushes findings to r.
type Analyzer interface {
	Analyze(ctx context.Context, filename, source string, r Reporter) error
}

// syntaxErrorMessage replaces the parser's own text, which is rarely
// helpful to a beginner.
const syntaxErrorMessage = "Syntax error. Python cannot understand this line. Check for missing characters!"

var flakeRegex = regexp.MustCompile(`^.*?:(\d+):(?:(\d+):?)?\s+(.*)$`)

// annotationReporter turns Reporter callbacks into Annotations.
type annotationReporter struct {
	annotations []Annotation
}

func (ar *annotationReporter) UnexpectedError(_ string, message string) {
	ar.annotations = append(ar.annotations, Annotation{
		Line:     0,
		Message:  message,
		Severity: SeverityError,
	})
}

func (ar *annotationReporter) SyntaxError(_ string, _ string, line, column int, _ string) {
	ar.annotations = append(ar.annotations, Annotation{
		Line:     zeroBased(line),
		Column:   zeroBased(column),
		Message:  syntaxErrorMessage,
		Severity: SeverityError,
	})
}

func (ar *annotationReporter) Flake(message string) {
	m := flakeRegex.FindStringSubmatch(message)
	if m == nil {
		ar.annotations = append(ar.annotations, Annotation{
			Line:     0,
			Message:  message,
			Severity: SeverityError,
		})
		return
	}

	line, _ := strconv.Atoi(m[1])
	col := 0
	if m[2] != "" {
		col, _ = strconv.Atoi(m[2])
	}
	ar.annotations = append(ar.annotations, Annotation{
		Line:     zeroBased(line),
		Column:   zeroBased(col),
		Message:  m[3],
		Severity: SeverityError,
	})
}

// zeroBased converts a 1-based position; unknown (zero) stays at zero.
func zeroBased(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}

// pyflakesBridge runs pyflakes.api.check with a reporter that writes one
// JSON object per callback, so the Go side can replay the callbacks.
const pyflakesBridge = `import json, sys
from pyflakes.api import check

class Reporter:
    def unexpectedError(self, filename, msg):
        print(json.dumps({"kind": "unexpected", "filename": filename, "message": str(msg)}))
    def syntaxError(self, filename, msg, lineno, offset, text):
        print(json.dumps({"kind": "syntax", "filename": filename, "message": str(msg),
                          "line": lineno, "column": offset, "source": text}))
    def flake(self, message):
        print(json.dumps({"kind": "flake", "message": str(message)}))

check(sys.stdin.read(), sys.argv[1], Reporter())
`

// bridgeRecord is one line of pyflakesBridge output.
type bridgeRecord struct {
	Kind     string  `json:"kind"`
	Filename string  `json:"filename"`
	Message  string  `json:"message"`
	Line     *int    `json:"line"`
	Column   *int    `json:"column"`
	Source   *string `json:"source"`
}

// PyflakesAnalyzer implements Analyzer by running pyflakes in a Python
// interpreter through a process.Runner.
type PyflakesAnalyzer struct {
	runner process.Runner
	python string
}

// NewPyflakesAnalyzer creates an analyzer using the given interpreter.
func NewPyflakesAnalyzer(runner process.Runner, python string) *PyflakesAnalyzer {
	return &PyflakesAnalyzer{runner: runner, python: python}
}

// Analyze implements Analyzer.
func (a *PyflakesAnalyzer) Analyze(ctx context.Context, filename, source string, r Reporter) error {
	cmd := process.Command{
		Name:  a.python,
		Args:  []string{"-c", pyflakesBridge, filename},
		Stdin: source,
	}

	res, err := a.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && strings.TrimSpace(res.Stdout) == "" {
		return &ToolError{Tool: "pyflakes", ExitCode: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
	}

	scanner := bufio.NewScanner(strings.NewReader(res.Stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec bridgeRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("decode pyflakes output %q: %w", line, err)
		}
		replay(rec, r)
	}
	return scanner.Err()
}

func replay(rec bridgeRecord, r Reporter) {
	switch rec.Kind {
	case "unexpected":
		r.UnexpectedError(rec.Filename, rec.Message)
	case "syntax":
		var line, col int
		var src string
		if rec.Line != nil {
			line = *rec.Line
		}
		if rec.Column != nil {
			col = *rec.Column
		}
		if rec.Source != nil {
			src = *rec.Source
		}
		r.SyntaxError(rec.Filename, rec.Message, line, col, src)
	default:
		r.Flake(rec.Message)
	}
}

// ToolError reports that a checker program ran but failed.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
}
