package policy

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

// DefaultGitTimeout bounds a clone.
const DefaultGitTimeout = 30 * time.Second

// GitConfig pins a bundle to a repository revision.
type GitConfig struct {
	// URL is the repository URL or local path.
	URL string `yaml:"url"`

	// Ref is a branch, tag or commit. Empty means the remote HEAD.
	Ref string `yaml:"ref"`

	Auth GitAuth `yaml:"auth"`

	// Timeout bounds the clone. Zero uses DefaultGitTimeout.
	Timeout time.Duration `yaml:"timeout"`
}

// LoadGit clones cfg.URL into memory, resolves cfg.Ref and reads every
// bundle file under dir at that commit. The resolved commit is recorded in
// Bundle.Revision.
func LoadGit(ctx context.Context, cfg GitConfig, dir string) (*Bundle, error) {
	if cfg.URL == "" {
		return nil, &BundleError{Cause: fmt.Errorf("%w: git source needs a url", ErrInvalidBundle)}
	}
	auth, err := cfg.Auth.Method()
	if err != nil {
		return nil, &BundleError{File: cfg.URL, Cause: err}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultGitTimeout
	}
	cloneCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	repo, err := gogit.CloneContext(cloneCtx, memory.NewStorage(), nil, &gogit.CloneOptions{
		URL:  cfg.URL,
		Auth: auth,
		Tags: gogit.AllTags,
	})
	if err != nil {
		return nil, &BundleError{File: cfg.URL, Cause: fmt.Errorf("failed to clone repository: %w", err)}
	}

	hash, err := resolveRef(repo, cfg.Ref)
	if err != nil {
		return nil, &BundleError{File: cfg.URL, Cause: err}
	}
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, &BundleError{File: cfg.URL, Cause: fmt.Errorf("failed to get commit: %w", err)}
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, &BundleError{File: cfg.URL, Cause: fmt.Errorf("failed to get tree: %w", err)}
	}

	prefix := strings.Trim(path.Clean("/"+dir), "/")
	var bundles []*Bundle
	err = tree.Files().ForEach(func(f *object.File) error {
		if !inDir(f.Name, prefix) || !hasBundleExtension(f.Name) {
			return nil
		}
		if f.Size > MaxFileSize {
			return &BundleError{
				File:  f.Name,
				Cause: fmt.Errorf("%w: file size %d bytes exceeds maximum %d bytes", ErrInvalidBundle, f.Size, MaxFileSize),
			}
		}
		r, err := f.Reader()
		if err != nil {
			return &BundleError{File: f.Name, Cause: err}
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return &BundleError{File: f.Name, Cause: err}
		}
		b, err := parseFile(f.Name, data)
		if err != nil {
			return err
		}
		bundles = append(bundles, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(bundles) == 0 {
		return nil, &BundleError{File: cfg.URL + "/" + prefix, Cause: ErrNoBundleFiles}
	}
	slices.SortFunc(bundles, func(a, b *Bundle) int { return strings.Compare(a.Sources[0], b.Sources[0]) })

	merged, err := Merge(bundles...)
	if err != nil {
		return nil, err
	}
	merged.Revision = hash.String()
	return merged, nil
}

// resolveRef resolves ref in a fresh clone, where branches other than the
// default exist only as remote-tracking refs.
func resolveRef(repo *gogit.Repository, ref string) (plumbing.Hash, error) {
	if ref == "" {
		head, err := repo.Head()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("failed to get HEAD: %w", err)
		}
		return head.Hash(), nil
	}
	var firstErr error
	for _, rev := range []string{ref, "origin/" + ref} {
		h, err := repo.ResolveRevision(plumbing.Revision(rev))
		if err == nil {
			return *h, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("failed to resolve ref %q: %w", ref, firstErr)
}

// inDir reports whether the slash-separated name lies under prefix and has
// no hidden path element.
func inDir(name, prefix string) bool {
	if prefix != "" {
		if !strings.HasPrefix(name, prefix+"/") {
			return false
		}
		name = strings.TrimPrefix(name, prefix+"/")
	}
	return !slices.ContainsFunc(strings.Split(name, "/"), isHidden)
}
