package policy

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

// Source types.
const (
	SourceFile = "file"
	SourceDir  = "dir"
	SourceGit  = "git"
)

// MaxFileSize bounds a single bundle file.
const MaxFileSize int64 = 4 << 20

// Extensions are the file extensions treated as bundle files.
var Extensions = []string{".yaml", ".yml"}

// SourceConfig selects where a bundle is read from.
type SourceConfig struct {
	// Type is file, dir or git. Empty infers file or dir from Path.
	Type string `yaml:"source"`

	// Path is the bundle file or directory. For git sources it is the
	// directory inside the repository.
	Path string `yaml:"path"`

	Git GitConfig `yaml:"git"`
}

// Load reads the bundle described by cfg.
func Load(ctx context.Context, cfg SourceConfig) (*Bundle, error) {
	switch cfg.Type {
	case SourceGit:
		return LoadGit(ctx, cfg.Git, cfg.Path)
	case SourceFile:
		return LoadFile(cfg.Path)
	case SourceDir:
		return LoadDir(cfg.Path)
	case "":
		info, err := os.Stat(cfg.Path)
		if err != nil {
			return nil, &BundleError{File: cfg.Path, Cause: err}
		}
		if info.IsDir() {
			return LoadDir(cfg.Path)
		}
		return LoadFile(cfg.Path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Type)
}

// LoadFile reads a single bundle file.
func LoadFile(path string) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &BundleError{File: path, Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &BundleError{File: path, Cause: fmt.Errorf("%w: not a regular file", ErrInvalidBundle)}
	}
	if info.Size() > MaxFileSize {
		return nil, &BundleError{
			File:  path,
			Cause: fmt.Errorf("%w: file size %d bytes exceeds maximum %d bytes", ErrInvalidBundle, info.Size(), MaxFileSize),
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &BundleError{File: path, Cause: err}
	}
	return parseFile(path, data)
}

// LoadDir reads every bundle file under dir, recursively, and merges them in
// lexical path order. Hidden files and directories are skipped.
func LoadDir(dir string) (*Bundle, error) {
	files, err := bundleFiles(dir)
	if err != nil {
		return nil, err
	}
	bundles := make([]*Bundle, 0, len(files))
	for _, f := range files {
		b, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return Merge(bundles...)
}

func parseFile(name string, data []byte) (*Bundle, error) {
	if !utf8.Valid(data) {
		return nil, &BundleError{File: name, Cause: fmt.Errorf("%w: invalid UTF-8 encoding", ErrInvalidBundle)}
	}
	return Parse(name, data)
}

func bundleFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &BundleError{File: dir, Cause: err}
	}
	if !info.IsDir() {
		return nil, &BundleError{File: dir, Cause: fmt.Errorf("%w: not a directory", ErrInvalidBundle)}
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && hasBundleExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &BundleError{File: dir, Cause: err}
	}
	if len(files) == 0 {
		return nil, &BundleError{File: dir, Cause: ErrNoBundleFiles}
	}
	slices.Sort(files)
	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func hasBundleExtension(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}
