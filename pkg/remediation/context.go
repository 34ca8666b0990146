package remediation

import (
	"fmt"
	"regexp"
	"strings"
)

// Context is the caller-supplied map of domain variables (party names,
// dates, identifiers). Unknown keys are ignored; missing keys fall back to
// field defaults.
type Context map[string]string

// Field is a placeholder a template body may reference.
type Field struct {
	Name        string `json:"name" yaml:"name"`
	Default     string `json:"default" yaml:"default"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// StandardFields are available to every template.
var StandardFields = []Field{
	{Name: "firm_name", Default: "the Firm", Description: "legal name of the issuing firm"},
	{Name: "counterparty_name", Default: "the Client", Description: "name of the recipient or counterparty"},
	{Name: "effective_date", Default: "the date of this document", Description: "date the document takes effect"},
	{Name: "jurisdiction", Default: "the applicable jurisdiction", Description: "governing jurisdiction"},
	{Name: "document_id", Default: "this document", Description: "caller's document identifier"},
	{Name: "regulator", Default: "the relevant regulator", Description: "supervising authority"},
	{Name: "product_name", Default: "this product", Description: "name of the promoted product"},
	{Name: "contact_details", Default: "our usual contact channels", Description: "where complaints and queries go"},
}

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	fieldNamePattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// parsePlaceholders returns the distinct placeholder names in body in
// first-use order. Any stray "{{" or "}}" outside a valid placeholder is a
// malformed template.
func parsePlaceholders(body string) ([]string, error) {
	stripped := placeholderPattern.ReplaceAllString(body, "")
	if strings.Contains(stripped, "{{") || strings.Contains(stripped, "}}") {
		return nil, fmt.Errorf("%w: unbalanced or invalid placeholder", ErrMalformedTemplate)
	}

	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names, nil
}

// Rendering is the result of rendering a template body.
type Rendering struct {
	// Text is the rendered body.
	Text string

	// Placeholders is the number of distinct placeholders in the body.
	Placeholders int

	// Supplied is how many of them the caller's context provided.
	Supplied int
}

// Completeness is the share of placeholders supplied by the caller, or 1
// when the body has none.
func (r Rendering) Completeness() float64 {
	if r.Placeholders == 0 {
		return 1
	}
	return float64(r.Supplied) / float64(r.Placeholders)
}

// substitute replaces placeholders in one pass; values are never re-scanned.
func substitute(body string, lookup func(name string) string) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(tok string) string {
		m := placeholderPattern.FindStringSubmatch(tok)
		return lookup(m[1])
	})
}
