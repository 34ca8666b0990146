package transform

import (
	"regexp"
	"strings"

	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/remediation"
)

// insert places rendered (under the template's section header, if any) at a
// start, end or before_signature insertion point.
func (t *Transformer) insert(text string, tmpl remediation.Template, rendered string, start int) change {
	content := strings.Trim(rendered, "\n")
	if content == "" {
		return unchanged(text, NoteUnchanged, 0)
	}
	if tmpl.SectionHeader != "" {
		content = document.HeadingLine(tmpl.SectionHeader) + content
	}
	offset := t.offset(text, tmpl.Insertion, start)
	if present(text, offset, content) {
		return unchanged(text, NoteAlreadyPresent, 0)
	}
	return insertAt(text, offset, paragraph(text, offset, content))
}

// present reports whether block already sits at offset, as whole lines
// ending just before it or starting just after it. Blank lines around
// offset are ignored.
func present(text string, offset int, block string) bool {
	before := strings.TrimRight(text[:offset], "\n")
	if strings.HasSuffix(before, block) {
		if i := len(before) - len(block); i == 0 || before[i-1] == '\n' {
			return true
		}
	}
	after := strings.TrimLeft(text[offset:], "\n")
	if strings.HasPrefix(after, block) {
		if rest := after[len(block):]; rest == "" || rest[0] == '\n' {
			return true
		}
	}
	return false
}

// offset resolves a positional insertion point in text. start is where the
// next start insertion goes, so that start insertions keep plan order.
func (t *Transformer) offset(text string, p remediation.InsertionPoint, start int) int {
	switch p.Kind {
	case remediation.InsertStart:
		return min(start, len(text))
	case remediation.InsertBeforeSignature:
		if off := document.FindSignature(text, t.signature); off >= 0 {
			return off
		}
	}
	return len(text)
}

// fillSection replaces the body of the section titled header with rendered,
// or appends the section when it does not exist.
func fillSection(text, header, rendered string) change {
	content := strings.Trim(rendered, "\n")

	s, ok := document.FindSection(text, header)
	if !ok {
		block := document.HeadingLine(header)
		if content != "" {
			block += content
		}
		return insertAt(text, len(text), paragraph(text, len(text), block))
	}

	old := s.Body(text)
	if content == "" && strings.TrimSpace(old) == "" {
		return unchanged(text, NoteAlreadyPresent, 0)
	}
	if content != "" && strings.Contains(old, strings.TrimSpace(content)) {
		return unchanged(text, NoteAlreadyPresent, 0)
	}

	body := content + "\n"
	if s.End < len(text) {
		body += "\n"
	}
	if s.BodyStart == len(text) && !strings.HasSuffix(text, "\n") {
		body = "\n" + body
	}
	e := Edit{Offset: s.BodyStart, Removed: old, Inserted: body}
	return change{text: text[:s.BodyStart] + body + text[s.End:], delta: []Edit{e}}
}

// replaceAll replaces every match of pattern with the literal replacement.
func replaceAll(text string, pattern *regexp.Regexp, replacement string) change {
	if pattern == nil {
		return unchanged(text, NoteNoMatch, 0)
	}
	matches := pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return unchanged(text, NoteNoMatch, 0)
	}

	var (
		b     strings.Builder
		delta []Edit
		last  int
		shift int
	)
	for _, m := range matches {
		matched := text[m[0]:m[1]]
		b.WriteString(text[last:m[0]])
		b.WriteString(replacement)
		last = m[1]
		if matched == replacement {
			continue
		}
		delta = append(delta, Edit{Offset: m[0] + shift, Removed: matched, Inserted: replacement})
		shift += len(replacement) - len(matched)
	}
	b.WriteString(text[last:])

	if len(delta) == 0 {
		return unchanged(text, NoteUnchanged, 0)
	}
	return change{text: b.String(), delta: delta}
}

// reorganize moves the template's section to the insertion point, creating
// it from the rendered body when it is missing.
func (t *Transformer) reorganize(text string, tmpl remediation.Template, rendered string, start int) change {
	header := tmpl.SectionHeader
	if header == "" {
		header = tmpl.Insertion.Header
	}

	s, ok := document.FindSection(text, header)
	if !ok {
		block := document.HeadingLine(header)
		if content := strings.Trim(rendered, "\n"); content != "" {
			block += content
		}
		offset := t.structuralTarget(text, tmpl.Insertion, start)
		return insertAt(text, offset, paragraph(text, offset, block))
	}

	if tmpl.Insertion.Kind == remediation.InsertSection &&
		document.NormalizeHeader(tmpl.Insertion.Header) == document.NormalizeHeader(header) {
		return unchanged(text, NoteInPlace, 0)
	}

	removed := s.Block(text)
	moved := removed
	if !strings.HasSuffix(moved, "\n") {
		moved += "\n"
	}
	rest := text[:s.Start] + text[s.End:]
	if start > s.Start {
		start = max(s.Start, start-len(removed))
	}
	offset := t.structuralTarget(rest, tmpl.Insertion, start)
	result := rest[:offset] + moved + rest[offset:]
	if result == text {
		return unchanged(text, NoteInPlace, 0)
	}

	return change{
		text: result,
		delta: []Edit{
			{Offset: s.Start, Removed: removed},
			{Offset: offset, Inserted: moved},
		},
	}
}

// structuralTarget resolves where a section is placed. A section insertion
// point places it immediately before the named section.
func (t *Transformer) structuralTarget(text string, p remediation.InsertionPoint, start int) int {
	if p.Kind == remediation.InsertSection {
		if s, ok := document.FindSection(text, p.Header); ok {
			return s.Start
		}
		return len(text)
	}
	return t.offset(text, p, start)
}

// advance moves the start cursor past delta. Edits before the cursor shift
// it; an insertion at the cursor made by a start remediation extends it.
func advance(cursor int, delta []Edit, atStart bool) int {
	for _, e := range delta {
		if e.Offset < cursor || (atStart && e.Offset == cursor && e.Removed == "") {
			cursor = max(e.Offset, cursor+len(e.Inserted)-len(e.Removed))
		}
	}
	return cursor
}

func insertAt(text string, offset int, inserted string) change {
	return change{
		text:  text[:offset] + inserted + text[offset:],
		delta: []Edit{{Offset: offset, Inserted: inserted}},
	}
}

// paragraph formats content for insertion at offset so that it ends with a
// newline and is separated from neighbouring text by a blank line.
func paragraph(text string, offset int, content string) string {
	out := content + "\n"
	if offset > 0 {
		before := text[:offset]
		switch {
		case !strings.HasSuffix(before, "\n"):
			out = "\n\n" + out
		case !strings.HasSuffix(before, "\n\n"):
			out = "\n" + out
		}
	}
	if offset < len(text) && !strings.HasPrefix(text[offset:], "\n") {
		out += "\n"
	}
	return out
}
