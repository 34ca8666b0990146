package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/cli"
)

var auditFlags struct {
	outcome  string
	docType  string
	since    string
	limit    int
	format   string
	all      bool
	schedule bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and maintain the audit store",
	Long: `Every synthesis run is recorded in the audit store with its correction
lineage and content hashes. These commands list runs, show one run in full,
verify hash chains and prune old entries.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Example: `  gatekeeper audit list --outcome needs_review --since 24h
  gatekeeper audit list --type financial_promotion --format csv`,
	Args: cobra.NoArgs,
	RunE: runAuditList,
}

var auditShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its full correction lineage",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [run-id]",
	Short: "Verify the hash chain of recorded runs",
	Long: `Verify re-checks the correction lineage of a run. When document text was
retained every delta is replayed, otherwise only the hash links are checked.
The exit status is 1 when any chain is broken.`,
	Example: `  gatekeeper audit verify 6f1c0d7e-...
  gatekeeper audit verify --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditVerify,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete entries outside the retention policy",
	Long: `Prune deletes entries older than audit.retention.days and trims the store
to audit.retention.max_entries. With --schedule it keeps running and prunes on
audit.retention.schedule until interrupted, serving metrics meanwhile.`,
	Args: cobra.NoArgs,
	RunE: runAuditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditShowCmd, auditVerifyCmd, auditPruneCmd)

	auditListCmd.Flags().StringVar(&auditFlags.outcome, "outcome", "", "filter by outcome: converged, needs_review, stalled")
	auditListCmd.Flags().StringVarP(&auditFlags.docType, "type", "t", "", "filter by document type")
	auditListCmd.Flags().StringVar(&auditFlags.since, "since", "", "only runs after a duration ago (24h) or an RFC 3339 time")
	auditListCmd.Flags().IntVar(&auditFlags.limit, "limit", audit.DefaultLimit, "maximum number of runs")
	auditListCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json, csv")

	auditVerifyCmd.Flags().BoolVar(&auditFlags.all, "all", false, "verify every stored run")

	auditPruneCmd.Flags().BoolVar(&auditFlags.schedule, "schedule", false, "keep running and prune on the configured schedule")
}

// parseSince accepts a duration relative to now or an RFC 3339 time.
func parseSince(s string, now time.Time) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		t := now.Add(-d)
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid --since %q: expected a duration or RFC 3339 time", s)
	}
	return &t, nil
}

func runAuditList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditFlags.format)
	if err != nil {
		return err
	}
	since, err := parseSince(auditFlags.since, time.Now())
	if err != nil {
		return cli.NewConfigError("since", err.Error())
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	store, err := a.requireStore()
	if err != nil {
		return err
	}
	entries, err := store.List(ctx, &audit.Query{
		Outcome:      auditFlags.outcome,
		DocumentType: auditFlags.docType,
		Since:        since,
		Limit:        auditFlags.limit,
	})
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), auditTable(entries))
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	store, err := a.requireStore()
	if err != nil {
		return err
	}
	entry, err := store.Get(ctx, args[0])
	if errors.Is(err, audit.ErrNotFound) {
		return cli.NewCommandError("audit show", fmt.Errorf("no run with id %q", args[0]))
	}
	if err != nil {
		return cli.NewCommandError("audit show", err)
	}
	return cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), entry)
}

// verification is the result of verifying one run.
type verification struct {
	RunID    string
	Replayed bool
	Err      error
}

// verificationTable renders verification results.
type verificationTable []verification

func (t verificationTable) Header() []string {
	return []string{"RUN", "CHECK", "STATUS"}
}

func (t verificationTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, v := range t {
		check := "hashes"
		if v.Replayed {
			check = "replay"
		}
		status := "ok"
		if v.Err != nil {
			status = v.Err.Error()
		}
		rows = append(rows, []string{v.RunID, check, status})
	}
	return rows
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	if auditFlags.all == (len(args) == 1) {
		return cli.NewConfigError("", "give either a run id or --all")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	store, err := a.requireStore()
	if err != nil {
		return err
	}

	var entries []*audit.Entry
	if auditFlags.all {
		n, err := store.Count(ctx)
		if err != nil {
			return cli.NewCommandError("audit verify", err)
		}
		if n > 0 {
			entries, err = store.List(ctx, &audit.Query{Limit: int(n)})
			if err != nil {
				return cli.NewCommandError("audit verify", err)
			}
		}
	} else {
		entry, err := store.Get(ctx, args[0])
		if errors.Is(err, audit.ErrNotFound) {
			return cli.NewCommandError("audit verify", fmt.Errorf("no run with id %q", args[0]))
		}
		if err != nil {
			return cli.NewCommandError("audit verify", err)
		}
		entries = append(entries, entry)
	}

	results := make(verificationTable, 0, len(entries))
	var broken []string
	for _, e := range entries {
		v := verification{RunID: e.RunID, Replayed: e.HasText(), Err: audit.Verify(e)}
		if v.Err != nil {
			broken = append(broken, e.RunID)
		}
		results = append(results, v)
	}
	if err := cli.NewFormatter(cli.FormatText).FormatTo(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	if len(broken) > 0 {
		return cli.NewExitError(cli.ExitFailure, fmt.Errorf("broken hash chain in %s", strings.Join(broken, ", ")))
	}
	return nil
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.WithSignals(cmd.Context())
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	store, err := a.requireStore()
	if err != nil {
		return err
	}
	p := a.pruner(store)

	if !auditFlags.schedule {
		deleted, err := p.Prune(ctx)
		if err != nil {
			return cli.NewCommandError("audit prune", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries\n", deleted)
		return nil
	}

	if *a.cfg.Audit.Retention.Schedule == "" {
		return cli.NewConfigError("audit.retention.schedule", "no schedule configured")
	}
	a.serveMetrics(ctx)
	if err := p.Start(ctx); err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	if next := p.NextRun(); next != nil {
		a.logger.Info("next prune scheduled", "at", next.Format(time.RFC3339))
	}
	<-ctx.Done()
	p.Stop()
	return nil
}
