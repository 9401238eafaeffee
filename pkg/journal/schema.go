package journal

// SchemaVersion is the current journal schema version.
const SchemaVersion = 1

// Schema creates the connections table and its query indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS connections (
	id TEXT PRIMARY KEY,
	conn_id TEXT NOT NULL,
	remote_addr TEXT NOT NULL,
	protocol TEXT NOT NULL,
	secure INTEGER NOT NULL,
	accepted_at TIMESTAMP NOT NULL,
	closed_at TIMESTAMP NOT NULL,
	requests INTEGER NOT NULL,
	error TEXT,
	panicked INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_connections_accepted_at ON connections(accepted_at);
CREATE INDEX IF NOT EXISTS idx_connections_protocol ON connections(protocol);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version on first initialization.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the recorded schema version.
const GetSchemaVersion = `SELECT version FROM schema_version LIMIT 1`

// defaultQueryLimit bounds unpaginated queries.
const defaultQueryLimit = 100
