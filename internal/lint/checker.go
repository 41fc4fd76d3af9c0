package lint

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/microstorm/internal/logging"
	"github.com/dshills/microstorm/internal/process"
)

// wildcardImport is the micro:bit idiom that hides every symbol from the
// analyzer.
const wildcardImport = "from microbit import *"

// expandedImport lists the names wildcardImport brings into scope.
const expandedImport = "from microbit import pin15, pin2, pin0, pin1, " +
	" pin3, pin6, pin4, i2c, pin5, pin7, pin8, Image, " +
	"pin9, pin14, pin16, reset, pin19, temperature, " +
	"sleep, pin20, button_a, button_b, running_time, " +
	"accelerometer, display, uart, spi, panic, pin13, " +
	"pin12, pin11, pin10, compass"

// expandFalsePositive matches the unused-import findings caused by
// expanding the wildcard import.
var expandFalsePositive = regexp.MustCompile(`^'microbit\.(\w+)' imported but unused$`)

// styleBridge runs the style checker without reading any configuration
// file or command line, so the report is always in the default
// "path:line:col: CODE message" format.
const styleBridge = `import importlib, sys
style = importlib.import_module(sys.argv[1])
guide = style.StyleGuide(parse_argv=False, config_file=False)
guide.check_files([sys.argv[2]])
`

// styleRegex matches "path:line:col: CODE message".
var styleRegex = regexp.MustCompile(`^.*:(\d+):(\d+):\s+(.*)$`)

// Checker runs the code quality tools against source text.
type Checker struct {
	analyzer    Analyzer
	runner      process.Runner
	python      string
	styleModule string
	tempDir     string
	logger      *logging.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithAnalyzer replaces the undefined-name analyzer.
func WithAnalyzer(a Analyzer) Option {
	return func(c *Checker) {
		c.analyzer = a
	}
}

// WithPython sets the interpreter used for the checkers.
func WithPython(python string) Option {
	return func(c *Checker) {
		if python != "" {
			c.python = python
		}
	}
}

// WithStyleModule sets the Python module providing StyleGuide.
func WithStyleModule(module string) Option {
	return func(c *Checker) {
		if module != "" {
			c.styleModule = module
		}
	}
}

// WithTempDir sets where the style checker's input file is written.
func WithTempDir(dir string) Option {
	return func(c *Checker) {
		c.tempDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Checker) {
		c.logger = l
	}
}

// NewChecker creates a Checker that runs tools through runner.
func NewChecker(runner process.Runner, opts ...Option) *Checker {
	c := &Checker{
		runner:      runner,
		python:      "python3",
		styleModule: "pycodestyle",
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.analyzer == nil {
		c.analyzer = NewPyflakesAnalyzer(runner, c.python)
	}
	c.logger = c.logger.WithComponent("lint")
	return c
}

// CheckUndefinedNames reports undefined names, unused imports and syntax
// errors in source, keyed by 0-based line.
func (c *Checker) CheckUndefinedNames(ctx context.Context, filename, source string) (Report, error) {
	importAll := strings.Contains(source, wildcardImport)
	if importAll {
		source = strings.ReplaceAll(source, wildcardImport, expandedImport)
	}

	ar := &annotationReporter{}
	if err := c.analyzer.Analyze(ctx, filename, source, ar); err != nil {
		return nil, fmt.Errorf("check undefined names in %s: %w", filename, err)
	}

	report := make(Report)
	for _, a := range ar.annotations {
		if importAll && expandFalsePositive.MatchString(a.Message) {
			continue
		}
		report.add(a)
	}
	c.logger.Debug("undefined-name check of %s: %d findings", filename, report.Len())
	return report, nil
}

// CheckStyle reports style problems in source, keyed by 0-based line.
//
// The style checker only reads files, so source is written to a temporary
// file which is removed before CheckStyle returns.
func (c *Checker) CheckStyle(ctx context.Context, source string) (Report, error) {
	f, err := os.CreateTemp(c.tempDir, "microstorm-*.py")
	if err != nil {
		return nil, fmt.Errorf("create style check file: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			c.logger.Warn("could not remove %s: %v", path, rmErr)
		}
	}()

	_, werr := f.WriteString(source)
	cerr := f.Close()
	if werr != nil {
		return nil, fmt.Errorf("write style check file: %w", werr)
	}
	if cerr != nil {
		return nil, fmt.Errorf("close style check file: %w", cerr)
	}

	res, err := c.runner.Run(ctx, process.Command{
		Name: c.python,
		Args: []string{"-c", styleBridge, c.styleModule, path},
	})
	if err != nil {
		return nil, fmt.Errorf("check style: %w", err)
	}
	// A failure status with no report means the module could not run.
	if res.ExitCode != 0 && strings.TrimSpace(res.Stdout) == "" {
		return nil, &ToolError{Tool: c.styleModule, ExitCode: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
	}

	report := ParseStyleOutput(res.Stdout)
	c.logger.Debug("style check: %d findings in %s", report.Len(), res.Duration)
	return report, nil
}

// ParseStyleOutput parses pycodestyle's text report. Lines that do not
// match "path:line:col: CODE message" are ignored.
func ParseStyleOutput(output string) Report {
	report := make(Report)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := styleRegex.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		line, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		col, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		code, description, ok := strings.Cut(m[3], " ")
		if !ok {
			continue
		}
		if code == "E303" {
			description += " above this line"
		}
		report.add(Annotation{
			Line:     line - 1,
			Column:   col - 1,
			Message:  capitalize(description),
			Severity: SeverityStyle,
			Code:     code,
		})
	}
	return report
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
