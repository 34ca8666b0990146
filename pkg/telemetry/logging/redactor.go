package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// Redactor scrubs credentials and e-mail addresses from log values.
type Redactor struct {
	patterns []redactPattern
	keys     map[string]bool
}

// NewRedactor returns a redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactPattern{
			{regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`), "Bearer ***"},
			{regexp.MustCompile(`\b(ghp|gho|ghs|glpat|sk)[-_][A-Za-z0-9_\-]{8,}`), "$1-***"},
			{regexp.MustCompile(`(?i)(password|passwd|token|secret)([=:]\s*)\S+`), "$1$2***"},
			{regexp.MustCompile(`([A-Za-z0-9._%+-])[A-Za-z0-9._%+-]*@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`), "$1***@$2"},
		},
		keys: map[string]bool{
			"token":              true,
			"password":           true,
			"ssh_key_passphrase": true,
			"authorization":      true,
		},
	}
}

// String redacts a single value.
func (r *Redactor) String(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// Attr redacts a string-valued attribute. Attributes whose key names a
// secret are replaced entirely.
func (r *Redactor) Attr(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	if r.keys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "***")
	}
	return slog.String(a.Key, r.String(a.Value.String()))
}
