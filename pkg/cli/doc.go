/*
Package cli provides command-line interface utilities for Gatekeeper.

The cli package includes output formatters, progress reporters, exit codes
and signal handling used by the gatekeeper command.

Output Formatting:

Command results can be written as text, JSON or CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Values implementing Table are rendered as aligned columns by the text
formatter and as records by the CSV formatter.

Progress Reporting:

Batch runs report progress from many workers:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(items)))
	// from each worker
	progress.Increment()
	progress.Finish()

Exit Codes:

ExitCode maps a command error to the process exit status. Runs that end
without converging return an *ExitError carrying ExitNeedsReview or
ExitStalled so scripts can tell them apart from failures.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
