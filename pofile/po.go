// Package pofile implements reading and writing of PO catalogs
// following the GNU gettext format.
//
// Parsing is strict about quoted strings: an unescaped double quote inside
// a field is reported as ErrUnescapedQuote so that callers can repair the
// input and try again. Entries read from a file remember their original
// lines, and Write emits them unchanged unless the translation was modified,
// in which case only the msgstr lines are re-rendered.
package pofile

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
)

// DefaultWrapWidth is the line width used when rendering new or modified
// strings for a freshly created file.
const DefaultWrapWidth = 78

const bom = "\ufeff"

var (
	// ErrUnescapedQuote reports a double quote inside a quoted string that
	// is not preceded by a backslash.
	ErrUnescapedQuote = errors.New("unescaped double quote in string")
	// ErrSyntax reports any other malformed line.
	ErrSyntax = errors.New("syntax error")
)

// ParseError describes a line that could not be parsed.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %s", e.Line, e.Err, strings.TrimSpace(e.Text))
}

func (e *ParseError) Unwrap() error { return e.Err }

// Entry represents a single translatable message in a PO file.
type Entry struct {
	// TranslatorComments are lines starting with "# " (translator comments).
	TranslatorComments []string
	// ExtractedComments are lines starting with "#." (extracted/automatic comments).
	ExtractedComments []string
	// References are source code locations, lines starting with "#:".
	References []string
	// Flags are format flags, lines starting with "#,".
	Flags []string
	// PreviousMsgID stores the previous msgid for fuzzy entries, lines starting with "#|".
	PreviousMsgID string

	MsgCtxt      string
	MsgID        string
	MsgIDPlural  string
	MsgStr       string
	MsgStrPlural map[int]string

	// Obsolete marks entries prefixed with "#~".
	Obsolete bool

	raw *rawEntry
}

// rawEntry is the original text of a parsed entry, including the blank and
// comment lines that preceded it.
type rawEntry struct {
	lines []string
	// msgstr lines are lines[strFrom:strTo]
	strFrom, strTo int
	msgStr         string
	plural         map[int]string
}

// HasTarget reports whether the entry carries any non-empty translation.
func (e *Entry) HasTarget() bool {
	if e.MsgStr != "" {
		return true
	}
	for _, v := range e.MsgStrPlural {
		if v != "" {
			return true
		}
	}
	return false
}

// IsFuzzy returns true if the entry is marked fuzzy.
func (e *Entry) IsFuzzy() bool {
	return e.HasFlag("fuzzy")
}

// HasFlag checks if a specific flag is present.
func (e *Entry) HasFlag(flag string) bool {
	return slices.Contains(e.Flags, flag)
}

// modified reports whether the translation differs from what was read.
func (e *Entry) modified() bool {
	if e.raw == nil {
		return true
	}
	return e.MsgStr != e.raw.msgStr || !maps.Equal(e.MsgStrPlural, e.raw.plural)
}

// File represents a parsed PO file.
type File struct {
	// Header is the metadata entry (msgid "").
	Header *Entry
	// Entries are the message entries in file order.
	Entries []*Entry
	// WrapWidth limits the width of rendered string lines. Zero disables
	// wrapping; strings are still split after embedded newlines.
	WrapWidth int

	crlf         bool
	finalNewline bool
	trailer      []string
}

// HeaderField returns a header field value by name.
func (f *File) HeaderField(name string) string {
	if f.Header == nil {
		return ""
	}
	for _, line := range strings.Split(f.Header.MsgStr, "\n") {
		if idx := strings.Index(line, ":"); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			if strings.EqualFold(key, name) {
				return strings.TrimSpace(line[idx+1:])
			}
		}
	}
	return ""
}

// SetHeaderField sets a header field value.
func (f *File) SetHeaderField(name, value string) {
	if f.Header == nil {
		f.Header = &Entry{}
	}

	lines := strings.Split(f.Header.MsgStr, "\n")
	found := false
	for i, line := range lines {
		if idx := strings.Index(line, ":"); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			if strings.EqualFold(key, name) {
				lines[i] = name + ": " + value
				found = true
				break
			}
		}
	}
	if !found {
		// Insert before trailing empty line
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = append(lines[:len(lines)-1], name+": "+value, "")
		} else {
			lines = append(lines, name+": "+value)
		}
	}
	f.Header.MsgStr = strings.Join(lines, "\n")
}

// NPlurals returns the number of plural forms declared by the Plural-Forms
// header, falling back to the standard value for the catalog language.
func (f *File) NPlurals() int {
	if n := parseNPlurals(f.HeaderField("Plural-Forms")); n > 0 {
		return n
	}
	if n := parseNPlurals(PluralFormsForLang(f.HeaderField("Language"))); n > 0 {
		return n
	}
	return 2
}

func parseNPlurals(forms string) int {
	_, rest, ok := strings.Cut(forms, "nplurals=")
	if !ok {
		return 0
	}
	rest = strings.TrimSpace(rest)
	end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
	if end >= 0 {
		rest = rest[:end]
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return n
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseBytes parses the PO catalog held in data.
func ParseBytes(data []byte) (*File, error) {
	f := &File{WrapWidth: DefaultWrapWidth}
	text := string(data)
	if text == "" {
		f.finalNewline = true
		return f, nil
	}

	f.finalNewline = strings.HasSuffix(text, "\n")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	f.crlf = strings.HasSuffix(lines[0], "\r")

	p := &parser{file: f}
	p.reset()
	for i, line := range lines {
		if err := p.line(i+1, line); err != nil {
			return nil, err
		}
	}
	if err := p.end(len(lines)); err != nil {
		return nil, err
	}
	return f, nil
}

type parser struct {
	file    *File
	cur     *Entry
	pending []string

	field  string // last keyword, continuation lines extend it
	plural int

	strFrom, strTo int
	hasID, hasStr  bool
}

func (p *parser) reset() {
	p.cur = nil
	p.pending = nil
	p.field = ""
	p.strFrom, p.strTo = -1, -1
	p.hasID, p.hasStr = false, false
}

func (p *parser) entry() *Entry {
	if p.cur == nil {
		p.cur = &Entry{MsgStrPlural: make(map[int]string)}
	}
	return p.cur
}

func (p *parser) finish() {
	e := p.cur
	e.raw = &rawEntry{
		lines:   p.pending,
		strFrom: p.strFrom,
		strTo:   p.strTo,
		msgStr:  e.MsgStr,
		plural:  maps.Clone(e.MsgStrPlural),
	}
	f := p.file
	if f.Header == nil && len(f.Entries) == 0 && e.MsgID == "" && e.MsgCtxt == "" && !e.Obsolete {
		f.Header = e
	} else {
		f.Entries = append(f.Entries, e)
	}
	p.reset()
}

func (p *parser) end(last int) error {
	if p.hasID {
		if !p.hasStr {
			return &ParseError{Line: last, Text: p.pending[len(p.pending)-1], Err: fmt.Errorf("%w: missing msgstr", ErrSyntax)}
		}
		p.finish()
		return nil
	}
	p.file.trailer = p.pending
	return nil
}

func (p *parser) line(num int, raw string) error {
	text := strings.TrimSpace(raw)
	if num == 1 {
		text = strings.TrimSpace(strings.TrimPrefix(text, bom))
	}

	if text == "" {
		if p.hasStr {
			p.finish()
		}
		p.pending = append(p.pending, raw)
		p.field = ""
		return nil
	}

	body, obsolete := text, false
	if rest, ok := strings.CutPrefix(text, "#~"); ok {
		rest = strings.TrimSpace(rest)
		if startsField(rest) {
			body, obsolete = rest, true
		}
	}

	if strings.HasPrefix(body, "#") {
		if p.hasStr {
			p.finish()
		}
		p.comment(body)
		p.pending = append(p.pending, raw)
		p.field = ""
		return nil
	}

	kw, rest := splitKeyword(body)
	fail := func(err error) error {
		return &ParseError{Line: num, Text: raw, Err: err}
	}

	if kw == "" && !strings.HasPrefix(body, `"`) {
		return fail(fmt.Errorf("%w: unexpected line", ErrSyntax))
	}
	value, err := unquoteStrict(rest)
	if err != nil {
		return fail(err)
	}

	switch {
	case kw == "":
		if p.field == "" {
			return fail(fmt.Errorf("%w: string continuation without a field", ErrSyntax))
		}
		p.appendField(value)
		p.pending = append(p.pending, raw)
		if p.field == "msgstr" || p.field == "msgstr[]" {
			p.strTo = len(p.pending)
		}
		return nil

	case kw == "msgctxt" || kw == "msgid":
		if p.hasStr {
			p.finish()
		}
		if p.hasID {
			return fail(fmt.Errorf("%w: %s follows msgid without msgstr", ErrSyntax, kw))
		}
		e := p.entry()
		if kw == "msgctxt" {
			e.MsgCtxt = value
		} else {
			e.MsgID = value
			p.hasID = true
		}

	case kw == "msgid_plural":
		if !p.hasID || p.hasStr {
			return fail(fmt.Errorf("%w: misplaced msgid_plural", ErrSyntax))
		}
		p.cur.MsgIDPlural = value

	case kw == "msgstr" || strings.HasPrefix(kw, "msgstr["):
		if !p.hasID {
			return fail(fmt.Errorf("%w: msgstr without msgid", ErrSyntax))
		}
		if kw == "msgstr" {
			if p.hasStr {
				return fail(fmt.Errorf("%w: duplicate msgstr", ErrSyntax))
			}
			p.cur.MsgStr = value
		} else {
			idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(kw, "msgstr["), "]"))
			if err != nil || idx < 0 {
				return fail(fmt.Errorf("%w: invalid msgstr index", ErrSyntax))
			}
			p.cur.MsgStrPlural[idx] = value
			p.plural = idx
			kw = "msgstr[]"
		}
		if p.strFrom < 0 {
			p.strFrom = len(p.pending)
		}
		p.strTo = len(p.pending) + 1
		p.hasStr = true
	}

	p.field = kw
	if obsolete {
		p.cur.Obsolete = true
	}
	p.pending = append(p.pending, raw)
	return nil
}

func (p *parser) appendField(value string) {
	e := p.cur
	switch p.field {
	case "msgctxt":
		e.MsgCtxt += value
	case "msgid":
		e.MsgID += value
	case "msgid_plural":
		e.MsgIDPlural += value
	case "msgstr":
		e.MsgStr += value
	case "msgstr[]":
		e.MsgStrPlural[p.plural] += value
	}
}

func (p *parser) comment(line string) {
	e := p.entry()
	switch {
	case strings.HasPrefix(line, "#:"):
		e.References = append(e.References, strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "#,"):
		for _, flag := range strings.Split(line[2:], ",") {
			if flag = strings.TrimSpace(flag); flag != "" {
				e.Flags = append(e.Flags, flag)
			}
		}
	case strings.HasPrefix(line, "#."):
		e.ExtractedComments = append(e.ExtractedComments, strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "#|"):
		prev := strings.TrimSpace(line[2:])
		if rest, ok := strings.CutPrefix(prev, "msgid "); ok {
			if v, err := unquoteStrict(rest); err == nil {
				e.PreviousMsgID = v
			}
		}
	case strings.HasPrefix(line, "#~"):
		// obsolete previous-msgid lines and bare markers carry nothing we model
	default:
		e.TranslatorComments = append(e.TranslatorComments, strings.TrimPrefix(line[1:], " "))
	}
}

// startsField reports whether s begins with a keyword or a quoted string.
func startsField(s string) bool {
	if strings.HasPrefix(s, `"`) {
		return true
	}
	kw, _ := splitKeyword(s)
	return kw != ""
}

// splitKeyword separates a field keyword from the rest of the line. It
// returns an empty keyword when s does not start with one.
func splitKeyword(s string) (kw, rest string) {
	end := strings.IndexAny(s, " \t\"")
	head := s
	if end >= 0 {
		head = s[:end]
		rest = s[end:]
	}
	switch {
	case head == "msgctxt", head == "msgid", head == "msgid_plural", head == "msgstr":
		return head, rest
	case strings.HasPrefix(head, "msgstr[") && strings.HasSuffix(head, "]"):
		return head, rest
	}
	return "", s
}

// unquoteStrict decodes a single PO quoted string. Trailing whitespace after
// the closing quote is allowed; anything else is an error.
func unquoteStrict(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || s[0] != '"' {
		return "", fmt.Errorf("%w: expected quoted string", ErrSyntax)
	}
	if len(s) < 2 || s[len(s)-1] != '"' {
		return "", fmt.Errorf("%w: unterminated string", ErrSyntax)
	}

	var b strings.Builder
	b.Grow(len(s))
	last := len(s) - 1
	for i := 1; i < last; i++ {
		c := s[i]
		switch c {
		case '"':
			return "", ErrUnescapedQuote
		case '\\':
			if i+1 >= last {
				return "", fmt.Errorf("%w: unterminated string", ErrSyntax)
			}
			i++
			b.WriteString(unescape(s[i]))
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func unescape(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case 'a':
		return "\a"
	case 'b':
		return "\b"
	case 'f':
		return "\f"
	case 'v':
		return "\v"
	case '\\', '"':
		return string(c)
	}
	return `\` + string(c)
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Write writes the PO file to a writer.
func (f *File) Write(w io.Writer) error {
	var out []string
	prevFresh := false
	emit := func(e *Entry) {
		lines := f.entryLines(e)
		fresh := e.raw == nil
		// Entries created in memory are separated by a blank line; parsed
		// entries already carry their own leading lines.
		if (fresh || prevFresh) && len(out) > 0 && len(lines) > 0 && !isBlank(out[len(out)-1]) && !isBlank(lines[0]) {
			out = append(out, f.eol(""))
		}
		out = append(out, lines...)
		prevFresh = fresh
	}

	if f.Header != nil {
		emit(f.Header)
	}
	for _, e := range f.Entries {
		emit(e)
	}
	out = append(out, f.trailer...)

	if len(out) == 0 {
		return nil
	}
	text := strings.Join(out, "\n")
	if f.finalNewline {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}

// WriteFile writes the PO file to disk.
func (f *File) WriteFile(path string) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	return f.Write(out)
}

func (f *File) entryLines(e *Entry) []string {
	if e.raw == nil {
		return f.render(e)
	}
	if !e.modified() {
		return e.raw.lines
	}
	lines := slices.Clone(e.raw.lines[:e.raw.strFrom])
	lines = append(lines, f.renderMsgStr(e)...)
	return append(lines, e.raw.lines[e.raw.strTo:]...)
}

func (f *File) render(e *Entry) []string {
	var lines []string
	for _, c := range e.TranslatorComments {
		lines = append(lines, strings.TrimRight("# "+c, " "))
	}
	for _, c := range e.ExtractedComments {
		lines = append(lines, "#. "+c)
	}
	for _, ref := range e.References {
		lines = append(lines, "#: "+ref)
	}
	if len(e.Flags) > 0 {
		lines = append(lines, "#, "+strings.Join(e.Flags, ", "))
	}
	if e.PreviousMsgID != "" {
		lines = append(lines, "#| msgid "+quote(e.PreviousMsgID))
	}

	prefix := ""
	if e.Obsolete {
		prefix = "#~ "
	}
	if e.MsgCtxt != "" {
		lines = append(lines, f.quotedField(prefix, "msgctxt", e.MsgCtxt)...)
	}
	lines = append(lines, f.quotedField(prefix, "msgid", e.MsgID)...)
	if e.MsgIDPlural != "" {
		lines = append(lines, f.quotedField(prefix, "msgid_plural", e.MsgIDPlural)...)
	}
	for i := range lines {
		lines[i] = f.eol(lines[i])
	}
	return append(lines, f.renderMsgStr(e)...)
}

func (f *File) renderMsgStr(e *Entry) []string {
	prefix := ""
	if e.Obsolete {
		prefix = "#~ "
	}

	var lines []string
	if e.MsgIDPlural != "" && len(e.MsgStrPlural) > 0 {
		indices := slices.Sorted(maps.Keys(e.MsgStrPlural))
		for _, idx := range indices {
			lines = append(lines, f.quotedField(prefix, fmt.Sprintf("msgstr[%d]", idx), e.MsgStrPlural[idx])...)
		}
	} else {
		lines = f.quotedField(prefix, "msgstr", e.MsgStr)
	}
	for i := range lines {
		lines[i] = f.eol(lines[i])
	}
	return lines
}

// quotedField renders a PO field with multiline quoting. Values containing
// newlines start with an empty string and continue one line per segment.
func (f *File) quotedField(prefix, field, value string) []string {
	head := prefix + field + " "
	if !strings.Contains(value, "\n") && (f.WrapWidth <= 0 || len(head)+len(quote(value)) <= f.WrapWidth) {
		return []string{head + quote(value)}
	}

	lines := []string{head + `""`}
	for _, part := range strings.SplitAfter(value, "\n") {
		if part == "" {
			continue
		}
		for _, chunk := range f.wrap(part) {
			lines = append(lines, prefix+quote(chunk))
		}
	}
	return lines
}

// wrap splits s at spaces so that each quoted chunk fits in WrapWidth.
// Words longer than the width are kept whole.
func (f *File) wrap(s string) []string {
	if f.WrapWidth <= 0 || len(quote(s)) <= f.WrapWidth {
		return []string{s}
	}
	var chunks []string
	var cur strings.Builder
	for _, word := range strings.SplitAfter(s, " ") {
		if cur.Len() > 0 && len(quote(cur.String()+word)) > f.WrapWidth {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

func (f *File) eol(line string) string {
	if f.crlf {
		return line + "\r"
	}
	return line
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// quote produces a PO-style quoted string.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return `"` + s + `"`
}

// PluralFormsForLang returns the standard Plural-Forms header for a language code.
func PluralFormsForLang(lang string) string {
	base := lang
	if idx := strings.IndexAny(lang, "_-"); idx > 0 {
		base = lang[:idx]
	}

	switch base {
	case "ja", "ko", "zh", "vi", "th", "id", "ms":
		return "nplurals=1; plural=0;"
	case "fr", "pt":
		return "nplurals=2; plural=(n > 1);"
	case "ru", "uk", "be", "hr", "sr", "bs":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "pl":
		return "nplurals=3; plural=(n==1 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "cs", "sk":
		return "nplurals=3; plural=(n==1 ? 0 : n>=2 && n<=4 ? 1 : 2);"
	case "ar":
		return "nplurals=6; plural=(n==0 ? 0 : n==1 ? 1 : n==2 ? 2 : n%100>=3 && n%100<=10 ? 3 : n%100>=11 ? 4 : 5);"
	default:
		return "nplurals=2; plural=(n != 1);"
	}
}
