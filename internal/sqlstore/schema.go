package sqlstore

import (
	"context"
	"fmt"
)

// Prices are TEXT on SQLite because NUMERIC affinity there would coerce
// "100.50" into a REAL.
var schemas = map[string][]string{
	DriverSQLite: {
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'IN_REVIEW', 'FINALIZED', 'CANCELED'))
		)`,
		`CREATE TABLE IF NOT EXISTS damages (
			id TEXT PRIMARY KEY,
			claim_id TEXT NOT NULL REFERENCES claims(id) ON DELETE CASCADE,
			part TEXT NOT NULL,
			severity TEXT NOT NULL CHECK (severity IN ('LOW', 'MEDIUM', 'HIGH')),
			image_url TEXT NOT NULL,
			price TEXT NOT NULL,
			score INTEGER NOT NULL CHECK (score >= 1 AND score <= 10)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_damages_claim ON damages(claim_id, id)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS claims (
			id VARCHAR(26) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'IN_REVIEW', 'FINALIZED', 'CANCELED'))
		)`,
		`CREATE TABLE IF NOT EXISTS damages (
			id VARCHAR(26) PRIMARY KEY,
			claim_id VARCHAR(26) NOT NULL REFERENCES claims(id) ON DELETE CASCADE,
			part VARCHAR(255) NOT NULL,
			severity VARCHAR(10) NOT NULL CHECK (severity IN ('LOW', 'MEDIUM', 'HIGH')),
			image_url VARCHAR(500) NOT NULL,
			price NUMERIC(10,2) NOT NULL CHECK (price >= 0),
			score INTEGER NOT NULL CHECK (score >= 1 AND score <= 10)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_damages_claim ON damages(claim_id, id)`,
	},
}

// Migrate creates the claims and damages tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts, ok := schemas[s.driver]
	if !ok {
		return fmt.Errorf("sqlstore: no schema for driver %q", s.driver)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return nil
}
