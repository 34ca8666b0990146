package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/policy"
)

var lintFlags struct {
	format string
	watch  bool
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check a policy bundle for errors",
	Long: `Load and compile the configured policy bundle and report every problem
found: malformed YAML, unknown gate kinds, invalid patterns, templates with
undeclared placeholders and mappings that name unknown gates or templates.

With --watch the bundle is linted again after every change until interrupted.

Examples:
  gatekeeper lint --policy ./policies
  gatekeeper lint --policy ./policies --format json
  gatekeeper lint --policy ./policies --watch`,
	Args: cobra.NoArgs,
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
	lintCmd.Flags().BoolVar(&lintFlags.watch, "watch", false, "lint again whenever the bundle changes")
}

// lintResult is the outcome of linting one bundle.
type lintResult struct {
	Source       string   `json:"source"`
	Valid        bool     `json:"valid"`
	Version      string   `json:"version,omitempty"`
	Revision     string   `json:"revision,omitempty"`
	Files        []string `json:"files,omitempty"`
	Gates        int      `json:"gates"`
	Remediations int      `json:"remediations"`
	Problems     []string `json:"problems,omitempty"`
}

func (r lintResult) String() string {
	var sb strings.Builder
	if r.Valid {
		fmt.Fprintf(&sb, "✓ %s: %d gate(s), %d remediation(s)\n", r.Source, r.Gates, r.Remediations)
		fmt.Fprintf(&sb, "  version %s\n", r.Version)
		if r.Revision != "" {
			fmt.Fprintf(&sb, "  revision %s\n", r.Revision)
		}
		return sb.String()
	}
	fmt.Fprintf(&sb, "✗ %s: %d problem(s)\n", r.Source, len(r.Problems))
	for _, p := range r.Problems {
		fmt.Fprintf(&sb, "  - %s\n", p)
	}
	return sb.String()
}

func runLint(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}

	ctx, stop := cli.WithSignals(cmd.Context())
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	src := a.cfg.Policy.Source()
	check := func(w io.Writer) error {
		res := lintBundle(ctx, src, policy.CompileOptions{
			SubstringFallback: a.cfg.Engine.SubstringFallback,
			Logger:            a.logger,
		})
		if err := cli.NewFormatter(format).FormatTo(w, res); err != nil {
			return err
		}
		if !res.Valid {
			return cli.NewExitError(cli.ExitFailure, nil)
		}
		return nil
	}

	if !lintFlags.watch {
		return check(cmd.OutOrStdout())
	}
	if src.Type == policy.SourceGit {
		return cli.NewConfigError("policy.watch", "git sources cannot be watched")
	}

	_ = check(cmd.OutOrStdout())
	w, err := policy.NewWatcher(src.Path, a.cfg.Policy.Debounce, a.logger)
	if err != nil {
		return cli.NewCommandError("lint", err)
	}
	err = w.Watch(ctx, func() error {
		if err := check(cmd.OutOrStdout()); err != nil && !cli.Silent(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return cli.NewCommandError("lint", err)
	}
	return nil
}

// lintBundle loads and compiles the bundle at src. It never fails: every
// problem is reported in the result.
func lintBundle(ctx context.Context, src policy.SourceConfig, opts policy.CompileOptions) lintResult {
	res := lintResult{Source: describeSource(src)}

	b, err := policy.Load(ctx, src)
	if err != nil {
		res.Problems = problems(err)
		return res
	}
	res.Files = b.Sources
	res.Revision = b.Revision

	pol, err := policy.Compile(b, opts)
	if err != nil {
		res.Problems = problems(err)
		return res
	}
	res.Valid = true
	res.Version = pol.Version
	res.Gates = pol.Gates.Len()
	res.Remediations = pol.Remediations.Len()
	return res
}

// problems flattens joined errors into one message per problem.
func problems(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, problems(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

func describeSource(src policy.SourceConfig) string {
	if src.Type == policy.SourceGit {
		ref := src.Git.Ref
		if ref == "" {
			ref = "HEAD"
		}
		return fmt.Sprintf("%s@%s", src.Git.URL, ref)
	}
	return src.Path
}
