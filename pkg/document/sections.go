package document

import (
	"regexp"
	"strings"
)

var headingPattern = regexp.MustCompile(`^[ \t]{0,3}(#{1,6})[ \t]+(.*?)[ \t#]*$`)

// DefaultSignaturePattern matches the first line of a signature block.
const DefaultSignaturePattern = `(?im)^[ \t]*(yours sincerely|yours faithfully|kind regards|signed|signature)\b`

// Section is a heading-delimited region of a document. Offsets are byte
// offsets into the text it was found in.
type Section struct {
	// Title is the heading text without leading '#' characters.
	Title string

	// Level is the heading level (1-6).
	Level int

	// Start is the offset of the heading line.
	Start int

	// BodyStart is the offset just past the heading line.
	BodyStart int

	// End is the offset where the next heading starts, or len(text).
	End int
}

// Body returns the section body text (without the heading line).
func (s Section) Body(text string) string {
	return text[s.BodyStart:s.End]
}

// Block returns the heading line and body.
func (s Section) Block(text string) string {
	return text[s.Start:s.End]
}

// NormalizeHeader reduces a header to its comparable form: leading '#'
// characters and surrounding whitespace removed, lower-cased.
func NormalizeHeader(header string) string {
	h := strings.TrimSpace(header)
	h = strings.TrimLeft(h, "#")
	return strings.ToLower(strings.TrimSpace(h))
}

// HeadingLine renders header as a markdown heading line (with trailing
// newline). Headers already written as headings are kept verbatim.
func HeadingLine(header string) string {
	h := strings.TrimSpace(header)
	if !strings.HasPrefix(h, "#") {
		h = "## " + h
	}
	return h + "\n"
}

// Sections returns every heading-delimited section in text in document order.
// A section ends where the next heading of any level starts.
func Sections(text string) []Section {
	var sections []Section
	offset := 0
	for _, line := range Lines(text) {
		content := strings.TrimRight(line, "\r\n")
		if m := headingPattern.FindStringSubmatch(content); m != nil {
			if n := len(sections); n > 0 {
				sections[n-1].End = offset
			}
			sections = append(sections, Section{
				Title:     strings.TrimSpace(m[2]),
				Level:     len(m[1]),
				Start:     offset,
				BodyStart: offset + len(line),
				End:       len(text),
			})
		}
		offset += len(line)
	}
	return sections
}

// FindSection returns the first section whose title matches header
// (case-insensitive, ignoring heading markers).
func FindSection(text, header string) (Section, bool) {
	want := NormalizeHeader(header)
	for _, s := range Sections(text) {
		if strings.ToLower(s.Title) == want {
			return s, true
		}
	}
	return Section{}, false
}

// FindSignature returns the offset of the line where the signature block
// starts, or -1 when pattern does not match.
func FindSignature(text string, pattern *regexp.Regexp) int {
	if pattern == nil {
		return -1
	}
	loc := pattern.FindStringIndex(text)
	if loc == nil {
		return -1
	}
	// Back up to the start of the line.
	return strings.LastIndexByte(text[:loc[0]], '\n') + 1
}
