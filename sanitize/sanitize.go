// Package sanitize repairs PO catalogs whose quoted strings contain
// unescaped double quotes or dangling backslashes, a common defect in
// hand-edited or machine-generated files.
package sanitize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrIrrecoverable is wrapped by every LineError.
var ErrIrrecoverable = errors.New("irrecoverable string field")

// LineError reports a field line that cannot be repaired.
type LineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Reason, strings.TrimSpace(e.Text))
}

func (e *LineError) Unwrap() error { return ErrIrrecoverable }

// Result is the repaired catalog text and the 1-based numbers of the lines
// that were rewritten.
type Result struct {
	Text     string
	Repaired []int
}

// Changed reports whether any line was rewritten.
func (r Result) Changed() bool { return len(r.Repaired) > 0 }

// fieldLine matches an optional obsolete/previous marker, an optional
// keyword and the remainder that should hold a quoted string.
var fieldLine = regexp.MustCompile(`^(\s*(?:#[~|]\s*)?)(msgctxt|msgid_plural|msgid|msgstr(?:\[\d+\])?)?(\s*)(.*?)(\s*)$`)

// Sanitize escapes stray double quotes and trailing lone backslashes inside
// the quoted strings of text. Lines that are not string fields, and line
// endings, are left byte for byte. Running it twice yields the same output
// as running it once.
func Sanitize(text string) (Result, error) {
	lines := strings.SplitAfter(text, "\n")
	var res Result
	var b strings.Builder
	b.Grow(len(text) + 64)

	for i, line := range lines {
		if line == "" {
			continue
		}
		body, eol := splitEOL(line)
		fixed, err := repairLine(i+1, body)
		if err != nil {
			return Result{}, err
		}
		if fixed != body {
			res.Repaired = append(res.Repaired, i+1)
		}
		b.WriteString(fixed)
		b.WriteString(eol)
	}
	res.Text = b.String()
	return res, nil
}

func splitEOL(line string) (body, eol string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

func repairLine(num int, line string) (string, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return line, nil
	}
	if strings.HasPrefix(trimmed, "#") && !isMarkedField(trimmed) {
		return line, nil
	}

	m := fieldLine.FindStringSubmatch(line)
	if m == nil {
		return line, nil
	}
	prefix, keyword, gap, rest, tail := m[1], m[2], m[3], m[4], m[5]

	if keyword == "" && !strings.HasPrefix(rest, `"`) {
		// Not a string field; the parser reports these.
		return line, nil
	}
	if keyword != "" && gap == "" && rest != "" && !strings.HasPrefix(rest, `"`) {
		// "msgidfoo" and similar are not keywords.
		return line, nil
	}
	if !strings.HasPrefix(rest, `"`) {
		return "", &LineError{Line: num, Text: line, Reason: "missing opening quote"}
	}
	if len(rest) < 2 || !strings.HasSuffix(rest, `"`) {
		return "", &LineError{Line: num, Text: line, Reason: "missing closing quote"}
	}

	inner := escapeInner(rest[1 : len(rest)-1])
	return prefix + keyword + gap + `"` + inner + `"` + tail, nil
}

// isMarkedField reports whether a comment line is an obsolete or previous
// string field ("#~ msgid ...", "#| msgid ...", "#~ \"...\"").
func isMarkedField(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "#~") && !strings.HasPrefix(trimmed, "#|") {
		return false
	}
	rest := strings.TrimSpace(trimmed[2:])
	if strings.HasPrefix(rest, `"`) {
		return true
	}
	for _, kw := range []string{"msgctxt", "msgid", "msgstr"} {
		if strings.HasPrefix(rest, kw) {
			return true
		}
	}
	return false
}

// escapeInner escapes every double quote that is not already part of an
// escape pair and doubles a lone trailing backslash.
func escapeInner(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			if i+1 == len(s) {
				b.WriteString(`\\`)
				continue
			}
			b.WriteByte(c)
			b.WriteByte(s[i+1])
			i++
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
