// Package backend opens the claim store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/kylejryan/claims-manager/internal/awsutil"
	"github.com/kylejryan/claims-manager/internal/config"
	"github.com/kylejryan/claims-manager/internal/ddb"
	"github.com/kylejryan/claims-manager/internal/memstore"
	"github.com/kylejryan/claims-manager/internal/sqlstore"
	"github.com/kylejryan/claims-manager/internal/storage"
)

// tableWait bounds how long Migrate waits for a new DynamoDB table to become active.
const tableWait = 2 * time.Minute

// Open returns the store for env.Backend. For DynamoDB it uses aws when given
// and loads the SDK configuration otherwise.
func Open(ctx context.Context, env config.Env, aws *awsutil.Clients) (storage.Store, error) {
	switch env.Backend {
	case config.BackendMemory:
		return memstore.New(), nil
	case config.BackendSQLite:
		return sqlstore.Open(ctx, sqlstore.DriverSQLite, env.DatabaseURL)
	case config.BackendPostgres:
		return sqlstore.Open(ctx, sqlstore.DriverPostgres, env.DatabaseURL)
	case config.BackendDynamoDB:
		if aws == nil {
			c, err := awsutil.Load(ctx, env.Region, env.Endpoint)
			if err != nil {
				return nil, fmt.Errorf("load aws config: %w", err)
			}
			aws = &c
		}
		return &ddb.Repo{DB: aws.DynamoDB, Table: env.Table}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", env.Backend)
}

// Migrate creates the schema of s: SQL tables, or the DynamoDB table.
// The in-memory store needs nothing. It reports what it did.
func Migrate(ctx context.Context, s storage.Store) (string, error) {
	switch st := s.(type) {
	case *sqlstore.Store:
		if err := st.Migrate(ctx); err != nil {
			return "", err
		}
		return "sql schema up to date", nil
	case *ddb.Repo:
		created, err := st.EnsureTable(ctx, tableWait)
		if err != nil {
			return "", err
		}
		if created {
			return "created table " + st.Table, nil
		}
		return "table " + st.Table + " already exists", nil
	case *memstore.Store:
		return "memory store needs no migration", nil
	}
	return "", fmt.Errorf("no migration for %T", s)
}
