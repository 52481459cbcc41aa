package data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements are applied in order inside one transaction
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS validators (
		id           TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		public_key   TEXT NOT NULL,
		reputation   DOUBLE PRECISION NOT NULL,
		active       BOOLEAN NOT NULL,
		joined_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS security_proofs (
		transaction_id TEXT PRIMARY KEY,
		proof_hash     TEXT NOT NULL,
		generated_at   TIMESTAMPTZ NOT NULL,
		payload        BYTEA
	)`,
	`CREATE TABLE IF NOT EXISTS challenges (
		transaction_id TEXT PRIMARY KEY,
		amount         DOUBLE PRECISION NOT NULL,
		start_time     TIMESTAMPTZ NOT NULL,
		expiry_time    TIMESTAMPTZ NOT NULL,
		status         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_validators_active ON validators (active)`,
	`CREATE INDEX IF NOT EXISTS idx_challenges_status ON challenges (status)`,
}

// SchemaManager applies the bridge security schema
type SchemaManager struct {
	pool *pgxpool.Pool
}

// NewSchemaManager creates a new SchemaManager
func NewSchemaManager(pool *pgxpool.Pool) *SchemaManager {
	return &SchemaManager{pool: pool}
}

// InitializeSchema creates all tables and indexes if they do not exist
func (sm *SchemaManager) InitializeSchema(ctx context.Context) error {
	tx, err := sm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}
