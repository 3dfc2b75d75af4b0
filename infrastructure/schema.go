package infrastructure

// schemaSQL mirrors the teacher's InitializeDatabase approach
// (decision_repository.go): raw SQL, JSONB columns for map-shaped data,
// run once at startup.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS borrowers (
	id UUID PRIMARY KEY,
	user_id VARCHAR(128) NOT NULL UNIQUE,
	full_name VARCHAR(256) NOT NULL,
	gender VARCHAR(32),
	region VARCHAR(128),
	has_phone BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_events (
	id UUID PRIMARY KEY,
	borrower_id UUID NOT NULL REFERENCES borrowers(id),
	event_type VARCHAR(64) NOT NULL,
	event_data JSONB NOT NULL DEFAULT '{}',
	schema_version VARCHAR(16) NOT NULL DEFAULT 'v1',
	processed BOOLEAN NOT NULL DEFAULT false,
	processed_at TIMESTAMPTZ,
	processing_notes TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feature_vectors (
	borrower_id UUID NOT NULL REFERENCES borrowers(id),
	feature_set VARCHAR(64) NOT NULL,
	feature_version VARCHAR(16) NOT NULL,
	features JSONB NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	source_event_count INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS loan_requests (
	id UUID PRIMARY KEY,
	borrower_id UUID NOT NULL REFERENCES borrowers(id),
	requested_amount NUMERIC NOT NULL,
	purpose VARCHAR(64) NOT NULL,
	status VARCHAR(32) NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credit_decisions (
	id UUID PRIMARY KEY,
	loan_request_id UUID NOT NULL REFERENCES loan_requests(id),
	credit_score NUMERIC NOT NULL,
	decision VARCHAR(16) NOT NULL,
	explanation TEXT,
	model_version VARCHAR(32) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decision_lineage (
	id UUID PRIMARY KEY,
	decision_id UUID NOT NULL REFERENCES credit_decisions(id),
	borrower_id UUID NOT NULL REFERENCES borrowers(id),
	data_sources JSONB NOT NULL DEFAULT '{}',
	models_used JSONB NOT NULL DEFAULT '{}',
	policy_version VARCHAR(32) NOT NULL,
	fraud_checks JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id UUID PRIMARY KEY,
	action VARCHAR(128) NOT NULL,
	entity_type VARCHAR(64) NOT NULL,
	entity_id VARCHAR(128),
	metadata JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
