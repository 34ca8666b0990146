// Package logging builds the process logger.
//
// Components receive a *slog.Logger and tag their records with a
// "component" attribute. This package only decides where records go and
// what they look like:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//
// Run-scoped attributes travel in the context. Records logged with a
// context carrying them get run_id, document_type and policy_version added:
//
//	ctx = logging.WithRun(ctx, runID, "promotion")
//	logger.InfoContext(ctx, "document loaded")
//
// With Redact set, string attributes are scrubbed of credentials and e-mail
// addresses before they are written. Document text is never logged.
package logging
