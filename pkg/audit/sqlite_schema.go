package audit

// SchemaVersion is the current audit database schema version.
const SchemaVersion = 1

// Schema creates the audit tables. Timestamps are stored as Unix
// nanoseconds so that both SQLite drivers read them back identically.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_runs (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL,
    document_type TEXT,
    module_ids TEXT,
    policy_version TEXT,
    outcome TEXT NOT NULL,
    iterations_used INTEGER NOT NULL,
    input_hash TEXT NOT NULL,
    final_hash TEXT NOT NULL,
    residual TEXT,
    corrections TEXT NOT NULL,
    input_text TEXT,
    final_text TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_runs_created_at ON audit_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_audit_runs_outcome ON audit_runs(outcome);
CREATE INDEX IF NOT EXISTS idx_audit_runs_document_type ON audit_runs(document_type);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`

// GetSchemaVersion reads the newest applied schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`

const selectColumns = `id, run_id, created_at, document_type, module_ids, policy_version,
    outcome, iterations_used, input_hash, final_hash, residual, corrections,
    input_text, final_text`
