package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    beneficiary_id TEXT NOT NULL,
    hospital_id TEXT NOT NULL,
    clinical_text TEXT,
    bill_text TEXT,
    documents TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_claims_tenant ON claims(tenant_id);
CREATE INDEX IF NOT EXISTS idx_claims_beneficiary ON claims(tenant_id, beneficiary_id);
CREATE INDEX IF NOT EXISTS idx_claims_hospital ON claims(tenant_id, hospital_id);
CREATE INDEX IF NOT EXISTS idx_claims_timestamp ON claims(tenant_id, timestamp);
`

const schemaAdjudications = `
CREATE TABLE IF NOT EXISTS adjudications (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    status TEXT NOT NULL,
    facts TEXT NOT NULL,
    verdict TEXT NOT NULL,
    flag_results TEXT,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_adjudications_tenant ON adjudications(tenant_id);
CREATE INDEX IF NOT EXISTS idx_adjudications_claim ON adjudications(tenant_id, claim_id);
CREATE INDEX IF NOT EXISTS idx_adjudications_status ON adjudications(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_adjudications_timestamp ON adjudications(tenant_id, timestamp);
`

const schemaFlagRules = `
CREATE TABLE IF NOT EXISTS flag_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    recommendation TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_flag_rules_tenant ON flag_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_flag_rules_enabled ON flag_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaAdjudications,
		schemaFlagRules,
	}
}
