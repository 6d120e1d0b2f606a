package sqlstore

// Schema applied on startup. Types stay in the portable intersection of
// SQLite and Postgres: TEXT keys, TEXT RFC3339 timestamps, REAL values.
const schema = `
CREATE TABLE IF NOT EXISTS metrics (
	ts TEXT NOT NULL,
	metric_type TEXT NOT NULL,
	value REAL NOT NULL,
	unit TEXT NOT NULL,
	department TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_metrics_type_ts ON metrics (metric_type, ts);

CREATE TABLE IF NOT EXISTS capacity (
	department TEXT PRIMARY KEY,
	total_beds INTEGER NOT NULL,
	occupied_beds INTEGER NOT NULL,
	available_beds INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS inventory (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	department TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	reorder_level INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS devices (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	department TEXT NOT NULL,
	status TEXT NOT NULL,
	last_maintenance TEXT,
	next_maintenance TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transports (
	id TEXT PRIMARY KEY,
	origin TEXT NOT NULL,
	destination TEXT NOT NULL,
	priority TEXT NOT NULL,
	status TEXT NOT NULL,
	estimated_minutes INTEGER NOT NULL,
	planned_start TEXT,
	started_at TEXT,
	expected_end TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transports_status ON transports (status);

CREATE TABLE IF NOT EXISTS sim_events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	start_time TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL,
	intensity REAL NOT NULL DEFAULT 0,
	affected_departments TEXT NOT NULL DEFAULT '[]',
	description TEXT NOT NULL DEFAULT '',
	end_time TEXT
);

CREATE TABLE IF NOT EXISTS patient_events (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	department TEXT NOT NULL,
	occurred_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS operations (
	id TEXT PRIMARY KEY,
	department TEXT NOT NULL,
	operation_type TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL,
	started_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	metric_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	department TEXT NOT NULL DEFAULT '',
	value REAL NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_dedup ON alerts (metric_type, department, severity, created_at);

CREATE TABLE IF NOT EXISTS predictions (
	id TEXT PRIMARY KEY,
	prediction_type TEXT NOT NULL,
	value REAL NOT NULL,
	confidence REAL NOT NULL,
	horizon_minutes INTEGER NOT NULL,
	department TEXT NOT NULL,
	model_version TEXT NOT NULL,
	factors TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	title TEXT NOT NULL,
	detail TEXT NOT NULL,
	priority TEXT NOT NULL,
	department TEXT NOT NULL DEFAULT '',
	applied INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS staff_shifts (
	id TEXT PRIMARY KEY,
	department TEXT NOT NULL,
	role TEXT NOT NULL,
	start_at TEXT NOT NULL,
	end_at TEXT NOT NULL,
	head_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	actor TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '{}',
	occurred_at TEXT NOT NULL
);
`
