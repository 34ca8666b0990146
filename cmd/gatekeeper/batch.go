package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/policy"
	"mercator-hq/gatekeeper/pkg/synthesis"
	"mercator-hq/gatekeeper/pkg/telemetry/logging"
)

var batchFlags struct {
	docType       string
	modules       []string
	context       []string
	contextFile   string
	maxIterations int
	workers       int
	outDir        string
	format        string
	watch         bool
	quiet         bool
}

var batchCmd = &cobra.Command{
	Use:   "batch <file|dir>...",
	Short: "Correct many documents concurrently",
	Long: `Synthesize every document given, expanding directories into the .md, .txt
and .markdown files they contain. Documents run on a bounded worker pool and a
failing document never affects the others.

With --watch the batch is re-run whenever the policy bundle changes, and the
metrics endpoint is served while watching.

The exit status is 1 when any document could not be processed, otherwise 3 when
any run stalled, 2 when any run needs review and 0 when all converged.

Examples:
  gatekeeper batch docs/ --type financial_promotion --out-dir corrected/
  gatekeeper batch a.md b.md --workers 2 --format json
  gatekeeper batch docs/ --watch --policy ./policies`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchFlags.docType, "type", "t", "", "document type applied to every document")
	batchCmd.Flags().StringSliceVarP(&batchFlags.modules, "module", "m", nil, "modules to evaluate (default: all)")
	batchCmd.Flags().StringArrayVar(&batchFlags.context, "context", nil, "template context value key=value (repeatable)")
	batchCmd.Flags().StringVar(&batchFlags.contextFile, "context-file", "", "YAML file of template context values")
	batchCmd.Flags().IntVar(&batchFlags.maxIterations, "max-iterations", -1, "iteration bound (default: engine.max_iterations)")
	batchCmd.Flags().IntVarP(&batchFlags.workers, "workers", "w", 0, "concurrent documents (default: engine.batch_workers)")
	batchCmd.Flags().StringVar(&batchFlags.outDir, "out-dir", "", "write corrected documents to this directory")
	batchCmd.Flags().StringVar(&batchFlags.format, "format", "text", "output format: text, json, csv")
	batchCmd.Flags().BoolVar(&batchFlags.watch, "watch", false, "re-run when the policy bundle changes (overrides policy.watch)")
	batchCmd.Flags().BoolVarP(&batchFlags.quiet, "quiet", "q", false, "do not report progress")
}

// batchJob is a prepared batch run.
type batchJob struct {
	app    *app
	items  []synthesis.Item
	format cli.OutputFormat
	out    io.Writer
	errOut io.Writer
}

func runBatch(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(batchFlags.format)
	if err != nil {
		return err
	}
	inputs, err := collectInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return cli.NewConfigError("", "no documents found")
	}
	docCtx, err := parseContext(batchFlags.contextFile, batchFlags.context)
	if err != nil {
		return cli.NewConfigError("context", err.Error())
	}

	items := make([]synthesis.Item, 0, len(inputs))
	for _, path := range inputs {
		text, err := readDocument(path, nil)
		if err != nil {
			return err
		}
		req := synthesis.Request{
			Text:         text,
			DocumentType: batchFlags.docType,
			ModuleIDs:    batchFlags.modules,
			Context:      docCtx,
		}
		if batchFlags.maxIterations >= 0 {
			req.MaxIterations = synthesis.Iterations(batchFlags.maxIterations)
		}
		items = append(items, synthesis.Item{ID: path, Request: req})
	}

	ctx, stop := cli.WithSignals(cmd.Context())
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if batchFlags.outDir != "" {
		if err := os.MkdirAll(batchFlags.outDir, 0o755); err != nil {
			return cli.NewCommandError("batch", fmt.Errorf("failed to create output directory: %w", err))
		}
	}

	job := &batchJob{
		app:    a,
		items:  items,
		format: format,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}

	watch := batchFlags.watch
	if !cmd.Flags().Changed("watch") {
		watch = a.cfg.Policy.Watch
	}
	if !watch {
		return job.run(ctx)
	}

	src := a.cfg.Policy.Source()
	if src.Type == policy.SourceGit {
		return cli.NewConfigError("policy.watch", "git sources cannot be watched")
	}
	a.serveMetrics(ctx)
	if err := job.run(ctx); err != nil && cli.ExitCode(err) == cli.ExitFailure {
		a.logger.Error("batch failed", "error", err)
	}
	w, err := policy.NewWatcher(src.Path, a.cfg.Policy.Debounce, a.logger)
	if err != nil {
		return cli.NewCommandError("batch", err)
	}
	err = w.Watch(ctx, func() error {
		a.logger.Info("policy bundle changed, re-running batch")
		if err := job.run(ctx); err != nil && cli.ExitCode(err) == cli.ExitFailure {
			return err
		}
		return nil
	})
	if err != nil {
		return cli.NewCommandError("batch", err)
	}
	return nil
}

// run compiles the current bundle and synthesizes every item once.
func (j *batchJob) run(ctx context.Context) error {
	pol, err := j.app.compile(ctx)
	if err != nil {
		return cli.NewCommandError("batch", err)
	}
	engine, err := j.app.engine(pol)
	if err != nil {
		return cli.NewCommandError("batch", err)
	}

	workers := batchFlags.workers
	if workers <= 0 {
		workers = j.app.cfg.Engine.BatchWorkers
	}
	b := synthesis.NewBatch(engine, workers, j.app.logger)

	var progress cli.ProgressReporter
	if !batchFlags.quiet {
		progress = cli.NewProgressReporter(j.errOut)
		progress.Start(int64(len(j.items)))
	}
	ctx = logging.WithLogger(logging.WithPolicyVersion(ctx, pol.Version), j.app.logger)
	var failed atomic.Int64
	b.OnItemDone(func(r synthesis.ItemResult) {
		if r.Err != nil {
			failed.Add(1)
		} else {
			itemCtx := logging.WithRun(ctx, r.Result.RunID, batchFlags.docType)
			logging.FromContext(itemCtx).DebugContext(itemCtx, "document synthesized",
				"path", r.ID,
				"outcome", r.Result.Outcome,
			)
		}
		if progress == nil {
			return
		}
		if r.Err != nil {
			progress.Error(fmt.Errorf("%s: %w", r.ID, r.Err))
		}
		progress.Increment()
	})

	results := b.Run(ctx, j.items)
	if progress != nil {
		progress.Finish()
	}

	rows := make(batchTable, 0, len(results))
	var outcomes []synthesis.Outcome
	for _, r := range results {
		row := batchRow{ID: r.ID}
		switch {
		case r.Err != nil:
			row.Error = r.Err.Error()
		default:
			row.RunID = r.Result.RunID
			row.Outcome = string(r.Result.Outcome)
			row.Iterations = r.Result.IterationsUsed
			row.Corrections = len(r.Result.Corrections)
			row.Residual = len(r.Result.ResidualFailures)
			outcomes = append(outcomes, r.Result.Outcome)
			if batchFlags.outDir != "" {
				row.Output = outputPath(batchFlags.outDir, r.ID)
				if err := os.WriteFile(row.Output, []byte(r.Result.FinalDocument.Text()), 0o644); err != nil {
					row.Error = fmt.Sprintf("failed to write output: %v", err)
					row.Output = ""
					failed.Add(1)
				}
			}
		}
		rows = append(rows, row)
	}

	if err := cli.NewFormatter(j.format).FormatTo(j.out, rows); err != nil {
		return err
	}

	if n := failed.Load(); n > 0 {
		return cli.NewCommandError("batch", fmt.Errorf("%d of %d documents failed", n, len(results)))
	}
	return exitFor(worstOutcome(outcomes))
}

// outcomeRank orders outcomes by how much attention they need.
var outcomeRank = map[synthesis.Outcome]int{
	synthesis.OutcomeConverged:   0,
	synthesis.OutcomeNeedsReview: 1,
	synthesis.OutcomeStalled:     2,
}

// worstOutcome returns the outcome needing the most attention. An empty
// slice converges.
func worstOutcome(outcomes []synthesis.Outcome) synthesis.Outcome {
	worst := synthesis.OutcomeConverged
	for _, o := range outcomes {
		if outcomeRank[o] > outcomeRank[worst] {
			worst = o
		}
	}
	return worst
}
