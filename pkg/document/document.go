package document

import (
	"slices"
	"strings"
)

// Metadata describes what kind of document is being synthesized and which
// regulatory modules apply to it.
type Metadata struct {
	// DocumentType is the caller's classification (e.g. "financial_promotion").
	DocumentType string `json:"document_type" yaml:"document_type"`

	// ModuleIDs lists the modules the document is evaluated against.
	ModuleIDs []string `json:"module_ids" yaml:"module_ids"`
}

// Document is an immutable text document plus metadata.
type Document struct {
	text     string
	metadata Metadata
}

// New creates a document. The module id slice is copied.
func New(text string, metadata Metadata) Document {
	metadata.ModuleIDs = slices.Clone(metadata.ModuleIDs)
	return Document{text: text, metadata: metadata}
}

// Text returns the document text.
func (d Document) Text() string {
	return d.text
}

// Metadata returns a copy of the document metadata.
func (d Document) Metadata() Metadata {
	m := d.metadata
	m.ModuleIDs = slices.Clone(m.ModuleIDs)
	return m
}

// DocumentType is shorthand for Metadata().DocumentType.
func (d Document) DocumentType() string {
	return d.metadata.DocumentType
}

// ModuleIDs returns a copy of the module ids.
func (d Document) ModuleIDs() []string {
	return slices.Clone(d.metadata.ModuleIDs)
}

// WithText returns a new document with the same metadata and different text.
func (d Document) WithText(text string) Document {
	return New(text, d.metadata)
}

// Hash returns the content hash of the document text.
func (d Document) Hash() string {
	return HashString(d.text)
}

// Span is a half-open byte range [Start, End) within a document's text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Excerpt returns the text covered by the span, clamped to the text bounds.
func (s Span) Excerpt(text string) string {
	start := max(0, min(s.Start, len(text)))
	end := max(start, min(s.End, len(text)))
	return text[start:end]
}

// Lines splits text into lines keeping the trailing newline on each line, so
// that strings.Join(Lines(t), "") == t.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.SplitAfter(text, "\n")
}
