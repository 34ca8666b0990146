package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/gatekeeper/pkg/remediation"
)

// documentExtensions are the files picked up when a directory is given.
var documentExtensions = []string{".md", ".txt", ".markdown"}

// readDocument reads a document from path, or from stdin when path is "-".
func readDocument(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read document %q: %w", path, err)
	}
	return string(data), nil
}

// collectInputs expands directories into the documents they contain. The
// result is sorted and free of duplicates.
func collectInputs(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to access %q: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && slices.Contains(documentExtensions, strings.ToLower(filepath.Ext(path))) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %q: %w", p, err)
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// parseContext builds the template context from a YAML file of string
// values and key=value pairs. Pairs override the file.
func parseContext(file string, pairs []string) (remediation.Context, error) {
	ctx := remediation.Context{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read context file: %w", err)
		}
		if err := yaml.Unmarshal(data, &ctx); err != nil {
			return nil, fmt.Errorf("failed to parse context file %q: %w", file, err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid context value %q: expected key=value", pair)
		}
		ctx[key] = value
	}
	return ctx, nil
}

// outputPath returns where the corrected version of input is written.
func outputPath(outDir, input string) string {
	return filepath.Join(outDir, filepath.Base(input))
}
