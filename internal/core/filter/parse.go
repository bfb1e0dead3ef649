package filter

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"unicode/utf8"
)

// ErrRulesFileMissing is returned by Load when the rule file does not exist.
// It is a note, not a failure: the returned rule set is empty and only the
// built-in metadata exclusion applies.
var ErrRulesFileMissing = errors.New("filter rule file not found")

// DiagnosticKind classifies a rejected rule file line
type DiagnosticKind string

const (
	// DiagUnsupported marks syntax this engine does not understand,
	// such as plain gitignore lines without a sign prefix
	DiagUnsupported DiagnosticKind = "unsupported"

	// DiagInvalid marks a signed line whose pattern cannot be used
	DiagInvalid DiagnosticKind = "invalid"
)

// Diagnostic reports a line that was skipped while parsing
type Diagnostic struct {
	Line int
	Text string
	Kind DiagnosticKind
	Msg  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s rule %q: %s", d.Line, d.Kind, d.Text, d.Msg)
}

// Parse reads rule file contents. Blank lines and comments ("#" or ";") are
// skipped; every other line that is not "+PATTERN" or "-PATTERN" is reported
// and ignored.
func Parse(contents string) (Rules, []Diagnostic) {
	var rules Rules
	var diags []Diagnostic

	lines := strings.Split(contents, "\n")
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if !utf8.ValidString(line) {
			diags = append(diags, Diagnostic{Line: lineNo, Text: line, Kind: DiagInvalid, Msg: "not valid UTF-8"})
			continue
		}

		var verdict Verdict
		switch line[0] {
		case '+':
			verdict = Include
		case '-':
			verdict = Exclude
		default:
			diags = append(diags, Diagnostic{
				Line: lineNo,
				Text: line,
				Kind: DiagUnsupported,
				Msg:  "rules must start with '+' or '-'",
			})
			continue
		}

		rule, err := parsePattern(verdict, strings.TrimSpace(line[1:]))
		if err != nil {
			diags = append(diags, Diagnostic{Line: lineNo, Text: line, Kind: DiagInvalid, Msg: err.Error()})
			continue
		}
		rule.Line = lineNo
		rules = append(rules, rule)
	}

	return rules, diags
}

func parsePattern(verdict Verdict, pattern string) (Rule, error) {
	r := Rule{Verdict: verdict}

	pattern = strings.ReplaceAll(pattern, "\\", "/")
	if strings.HasSuffix(pattern, "/") {
		r.DirOnly = true
		pattern = strings.TrimRight(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.Anchored = true
		pattern = strings.TrimLeft(pattern, "/")
	}
	if pattern == "" {
		return r, errors.New("empty pattern")
	}
	for _, seg := range strings.Split(pattern, "/") {
		if seg == "" {
			return r, errors.New("empty path segment")
		}
		if _, err := path.Match(seg, ""); err != nil {
			return r, fmt.Errorf("bad glob %q", seg)
		}
	}

	r.Pattern = pattern
	return r, nil
}

// Load reads and parses a rule file. A missing file yields an empty rule set
// and ErrRulesFileMissing.
func Load(file string) (Rules, []Diagnostic, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRulesFileMissing, file)
		}
		return nil, nil, fmt.Errorf("reading filter rules: %w", err)
	}

	rules, diags := Parse(string(data))
	return rules, diags, nil
}
