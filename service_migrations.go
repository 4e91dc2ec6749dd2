package governkit

import (
	"github.com/fernandezvara/dbkit"
)

// MigrationService provides migration management functionality as an extension to Service
type MigrationService struct {
	*Service
}

// NewMigrationService creates a new migration service extension
func NewMigrationService(service *Service) *MigrationService {
	return &MigrationService{Service: service}
}

// Migrations returns all database migrations required for GovernKit.
// Use dbkit.Migrate(ctx, service.Migrations()) to run migrations.
// Use dbkit.MigrationStatus(ctx, service.Migrations()) to check status.
func (ms *MigrationService) Migrations() []dbkit.Migration {
	return []dbkit.Migration{
		{
			ID:          "governkit-001",
			Description: "Create capacity_ledgers table",
			SQL: `
                CREATE TABLE IF NOT EXISTS capacity_ledgers (
                    resource_id TEXT PRIMARY KEY,
                    committed INTEGER NOT NULL DEFAULT 0,
                    max_capacity INTEGER NOT NULL,
                    updated_at TIMESTAMPTZ NOT NULL DEFAULT current_timestamp
                )`,
		},
		{
			ID:          "governkit-002",
			Description: "Create ledger_claims table",
			SQL: `
                CREATE TABLE IF NOT EXISTS ledger_claims (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    resource_id TEXT NOT NULL,
                    claim_id TEXT NOT NULL,
                    state TEXT NOT NULL,
                    position INTEGER NOT NULL DEFAULT 0,
                    overbooked BOOLEAN NOT NULL DEFAULT false,
                    created_at TIMESTAMPTZ DEFAULT current_timestamp,
                    UNIQUE (resource_id, claim_id)
                )`,
		},
		{
			ID:          "governkit-003",
			Description: "Create governance_audit_log table",
			SQL: `
                CREATE TABLE IF NOT EXISTS governance_audit_log (
                    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
                    timestamp TIMESTAMPTZ NOT NULL DEFAULT current_timestamp,
                    actor_id TEXT NOT NULL,
                    role TEXT NOT NULL,
                    operation TEXT NOT NULL,
                    record_type TEXT NOT NULL,
                    record_id TEXT NOT NULL,
                    outcome TEXT NOT NULL,
                    reason TEXT,
                    from_status TEXT,
                    to_status TEXT,
                    reverted_fields TEXT[],
                    metadata JSONB,
                    ip_address TEXT,
                    user_agent TEXT,
                    request_id TEXT
                )`,
		},
	}
}
