package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

type runTable struct {
	runs [][]string
}

func (r runTable) Header() []string { return []string{"RUN", "OUTCOME"} }
func (r runTable) Rows() [][]string { return r.runs }

type greeting string

func (g greeting) String() string { return "hello " + string(g) }

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "JSON", want: FormatJSON},
		{in: "csv", want: FormatCSV},
		{in: "yaml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{
			name: "table",
			data: runTable{runs: [][]string{{"r-1", "converged"}, {"run-22", "stalled"}}},
			want: "RUN     OUTCOME\nr-1     converged\nrun-22  stalled\n",
		},
		{name: "stringer", data: greeting("world"), want: "hello world\n"},
		{name: "plain value", data: 42, want: "42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&TextFormatter{}).Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("Format() = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	tests := []struct {
		name   string
		data   any
		indent bool
	}{
		{name: "map", data: map[string]string{"key": "value"}},
		{name: "map with indent", data: map[string]string{"key": "value"}, indent: true},
		{
			name: "struct",
			data: struct {
				Name  string `json:"name"`
				Value int    `json:"value"`
			}{Name: "test", Value: 42},
			indent: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &JSONFormatter{Indent: tt.indent}
			output, err := formatter.Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			var result any
			if err := json.Unmarshal(output, &result); err != nil {
				t.Errorf("Format() produced invalid JSON: %v", err)
			}
		})
	}
}

func TestJSONFormatterWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&JSONFormatter{Indent: true}).FormatTo(buf, map[string]string{"test": "value"}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	var result map[string]string
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("FormatTo() produced invalid JSON: %v", err)
	}
	if result["test"] != "value" {
		t.Errorf("FormatTo() = %v", result)
	}
}

func TestCSVFormatter(t *testing.T) {
	table := runTable{runs: [][]string{{"r-1", "needs_review"}, {"r,2", "converged"}}}

	out, err := (&CSVFormatter{}).Format(table)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "RUN,OUTCOME\nr-1,needs_review\n\"r,2\",converged\n"
	if string(out) != want {
		t.Errorf("Format() = %q, want %q", out, want)
	}

	out, err = (&CSVFormatter{NoHeader: true}).Format(table)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.HasPrefix(string(out), "RUN") {
		t.Errorf("NoHeader output should skip the header: %q", out)
	}

	if _, err := (&CSVFormatter{}).Format(map[string]string{}); err == nil {
		t.Error("Format() should reject non-table values")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{format: FormatText, want: "*cli.TextFormatter"},
		{format: FormatJSON, want: "*cli.JSONFormatter"},
		{format: FormatCSV, want: "*cli.CSVFormatter"},
		{format: "unknown", want: "*cli.TextFormatter"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := fmt.Sprintf("%T", NewFormatter(tt.format)); got != tt.want {
				t.Errorf("NewFormatter(%q) type = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}
