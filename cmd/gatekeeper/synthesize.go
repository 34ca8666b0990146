package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/synthesis"
	"mercator-hq/gatekeeper/pkg/telemetry/logging"
	"mercator-hq/gatekeeper/pkg/telemetry/tracing"
)

var synthesizeFlags struct {
	docType       string
	modules       []string
	context       []string
	contextFile   string
	maxIterations int
	format        string
	output        string
	showText      bool
}

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize <file|->",
	Short: "Correct a document until it passes its policy gates",
	Long: `Evaluate a document against the policy bundle and apply remediations until
every gate passes, no further progress is possible, or the iteration bound is
reached.

The run is recorded in the audit store. The exit status is 0 when the document
converged, 2 when failures remain for review and 3 when the run stalled.

Examples:
  # Correct a financial promotion
  gatekeeper synthesize promo.md --type financial_promotion --context firm_name=Acme

  # Read from stdin and write the corrected text to a file
  cat promo.md | gatekeeper synthesize - --output promo.fixed.md

  # Report failures without correcting
  gatekeeper synthesize promo.md --max-iterations 0

  # JSON result including the correction lineage
  gatekeeper synthesize promo.md --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSynthesize,
}

func init() {
	rootCmd.AddCommand(synthesizeCmd)

	synthesizeCmd.Flags().StringVarP(&synthesizeFlags.docType, "type", "t", "", "document type")
	synthesizeCmd.Flags().StringSliceVarP(&synthesizeFlags.modules, "module", "m", nil, "modules to evaluate (default: all)")
	synthesizeCmd.Flags().StringArrayVar(&synthesizeFlags.context, "context", nil, "template context value key=value (repeatable)")
	synthesizeCmd.Flags().StringVar(&synthesizeFlags.contextFile, "context-file", "", "YAML file of template context values")
	synthesizeCmd.Flags().IntVar(&synthesizeFlags.maxIterations, "max-iterations", -1, "iteration bound (default: engine.max_iterations)")
	synthesizeCmd.Flags().StringVar(&synthesizeFlags.format, "format", "text", "output format: text, json")
	synthesizeCmd.Flags().StringVarP(&synthesizeFlags.output, "output", "o", "", "write the corrected document to this file")
	synthesizeCmd.Flags().BoolVar(&synthesizeFlags.showText, "show-text", false, "include the corrected document in the output")
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(synthesizeFlags.format)
	if err != nil {
		return err
	}
	text, err := readDocument(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	docCtx, err := parseContext(synthesizeFlags.contextFile, synthesizeFlags.context)
	if err != nil {
		return cli.NewConfigError("context", err.Error())
	}

	ctx, stop := cli.WithSignals(cmd.Context())
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	pol, err := a.compile(ctx)
	if err != nil {
		return cli.NewCommandError("synthesize", err)
	}
	engine, err := a.engine(pol)
	if err != nil {
		return cli.NewCommandError("synthesize", err)
	}

	req := synthesis.Request{
		Text:         text,
		DocumentType: synthesizeFlags.docType,
		ModuleIDs:    synthesizeFlags.modules,
		Context:      docCtx,
	}
	if synthesizeFlags.maxIterations >= 0 {
		req.MaxIterations = synthesis.Iterations(synthesizeFlags.maxIterations)
	}

	ctx = logging.WithPolicyVersion(ctx, pol.Version)
	ctx, span := a.tracing.Tracer("gatekeeper/cli").Start(ctx, "cli.synthesize")
	defer span.End()

	res, err := engine.Synthesize(ctx, req)
	tracing.SetStatus(span, err)
	if err != nil {
		return cli.NewCommandError("synthesize", err)
	}
	if id := tracing.TraceID(ctx); id != "" {
		a.logger.DebugContext(ctx, "synthesis traced", "trace_id", id, "run_id", res.RunID)
	}

	if synthesizeFlags.output != "" {
		if err := os.WriteFile(synthesizeFlags.output, []byte(res.FinalDocument.Text()), 0o644); err != nil {
			return cli.NewCommandError("synthesize", fmt.Errorf("failed to write output: %w", err))
		}
		runCtx := logging.WithRun(ctx, res.RunID, req.DocumentType)
		a.logger.InfoContext(runCtx, "corrected document written", "path", synthesizeFlags.output)
	}

	view := newRunView(res, synthesizeFlags.showText || (format == cli.FormatJSON && synthesizeFlags.output == ""))
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), view); err != nil {
		return err
	}
	return exitFor(res.Outcome)
}
