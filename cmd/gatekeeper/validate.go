package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/cli"
	"mercator-hq/gatekeeper/pkg/document"
	"mercator-hq/gatekeeper/pkg/gates"
)

var validateFlags struct {
	docType string
	modules []string
	format  string
}

var validateCmd = &cobra.Command{
	Use:   "validate <file|->",
	Short: "Evaluate policy gates without correcting",
	Long: `Evaluate a document against every applicable gate and print the report.

Nothing is corrected and nothing is audited. The exit status is 0 when no gate
fails and 2 otherwise.

Examples:
  gatekeeper validate promo.md --type financial_promotion
  gatekeeper validate promo.md --module cobs --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.docType, "type", "t", "", "document type")
	validateCmd.Flags().StringSliceVarP(&validateFlags.modules, "module", "m", nil, "modules to evaluate (default: all)")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json, csv")
}

// validationOutput is the JSON form of a report.
type validationOutput struct {
	PolicyVersion string `json:"policy_version"`
	gates.Report
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return err
	}
	text, err := readDocument(args[0], cmd.InOrStdin())
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

	pol, err := a.compile(ctx)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	doc := document.New(text, document.Metadata{
		DocumentType: validateFlags.docType,
		ModuleIDs:    validateFlags.modules,
	})
	report := pol.Gates.Evaluate(ctx, doc, validateFlags.modules)

	var out any = reportTable(report)
	if format == cli.FormatJSON {
		out = validationOutput{PolicyVersion: pol.Version, Report: report}
	}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if report.HasFailures() {
		return cli.NewExitError(cli.ExitNeedsReview, nil)
	}
	return nil
}
