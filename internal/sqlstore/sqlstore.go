// Package sqlstore implements storage.Store on database/sql for SQLite and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kylejryan/claims-manager/internal/models"
	"github.com/kylejryan/claims-manager/internal/storage"

	_ "github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a SQL implementation of storage.Store.
//
// Gated damage writes run in a transaction that first touches the parent claim
// row with "WHERE status = 'PENDING'", so a concurrent status change either
// waits for the write or makes it fail with storage.ErrConflict.
type Store struct {
	db     *sql.DB
	driver string
}

var _ storage.Store = (*Store)(nil)

// Open connects to dsn with the named driver.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "_pragma=foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if driver == DriverSQLite {
		// one writer at a time; avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

// New wraps an existing handle.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const claimColumns = `id, title, description, status`

const damageColumns = `id, claim_id, part, severity, image_url, price, score`

func scanClaim(row interface{ Scan(...any) error }) (models.Claim, error) {
	var (
		c    models.Claim
		desc sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Title, &desc, &c.Status); err != nil {
		return models.Claim{}, err
	}
	if desc.Valid {
		c.Description = &desc.String
	}
	return c, nil
}

func scanDamage(row interface{ Scan(...any) error }) (models.Damage, error) {
	var d models.Damage
	err := row.Scan(&d.ID, &d.ClaimID, &d.Part, &d.Severity, &d.ImageURL, &d.Price, &d.Score)
	return d, err
}

func getClaim(ctx context.Context, q queryer, id string) (models.Claim, error) {
	c, err := scanClaim(q.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Claim{}, storage.ErrNotFound
	}
	return c, err
}

// GetClaim returns the claim header; Damages is left nil.
func (s *Store) GetClaim(ctx context.Context, id string) (models.Claim, error) {
	return getClaim(ctx, s.db, id)
}

// ListClaims returns all claims ordered by id.
func (s *Store) ListClaims(ctx context.Context) ([]models.ClaimSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+claimColumns+` FROM claims ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ClaimSummary, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c.Summary())
	}
	return out, rows.Err()
}

// CreateClaim inserts a PENDING claim.
func (s *Store) CreateClaim(ctx context.Context, nc models.NewClaim) (models.Claim, error) {
	c := models.Claim{ID: ulid.Make().String(), Title: nc.Title, Description: nc.Description, Status: models.StatusPending}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO claims (id, title, description, status) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Title, nullString(c.Description), c.Status)
	if err != nil {
		return models.Claim{}, err
	}
	return c, nil
}

// SetClaimStatus is a single conditional UPDATE.
func (s *Store) SetClaimStatus(ctx context.Context, id string, from, to models.ClaimStatus) (models.Claim, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE claims SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return models.Claim{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Claim{}, err
	}
	if n == 0 {
		if _, err := getClaim(ctx, s.db, id); err != nil {
			return models.Claim{}, err
		}
		return models.Claim{}, storage.ErrConflict
	}
	return getClaim(ctx, s.db, id)
}

// GetDamagesForClaim returns the claim's damages in insertion order.
func (s *Store) GetDamagesForClaim(ctx context.Context, claimID string) ([]models.Damage, error) {
	return s.queryDamages(ctx, `SELECT `+damageColumns+` FROM damages WHERE claim_id = $1 ORDER BY id`, claimID)
}

// ListDamages returns every damage ordered by id.
func (s *Store) ListDamages(ctx context.Context) ([]models.Damage, error) {
	return s.queryDamages(ctx, `SELECT `+damageColumns+` FROM damages ORDER BY id`)
}

func (s *Store) queryDamages(ctx context.Context, query string, args ...any) ([]models.Damage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Damage, 0)
	for rows.Next() {
		d, err := scanDamage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// HasDamageWithSeverity reports whether claimID owns a damage of severity sv.
func (s *Store) HasDamageWithSeverity(ctx context.Context, claimID string, sv models.Severity) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM damages WHERE claim_id = $1 AND severity = $2 LIMIT 1`, claimID, sv).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CreateDamage inserts a damage while holding the parent claim PENDING.
func (s *Store) CreateDamage(ctx context.Context, claimID string, f models.DamageFields) (models.Damage, error) {
	d := models.Damage{ID: ulid.Make().String(), ClaimID: claimID}.WithFields(f)
	err := s.withPendingClaim(ctx, claimID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO damages (`+damageColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			d.ID, d.ClaimID, d.Part, d.Severity, d.ImageURL, d.Price, d.Score)
		return err
	})
	if err != nil {
		return models.Damage{}, err
	}
	return d, nil
}

// UpdateDamage replaces a damage's fields while holding its claim PENDING.
func (s *Store) UpdateDamage(ctx context.Context, id string, f models.DamageFields) (models.Damage, error) {
	claimID, err := s.damageClaim(ctx, id)
	if err != nil {
		return models.Damage{}, err
	}
	var d models.Damage
	err = s.withPendingClaim(ctx, claimID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE damages SET part = $1, severity = $2, image_url = $3, price = $4, score = $5 WHERE id = $6`,
			f.Part, f.Severity, f.ImageURL, f.Price, f.Score, id)
		if err := expectOne(res, err); err != nil {
			return err
		}
		d, err = scanDamage(tx.QueryRowContext(ctx, `SELECT `+damageColumns+` FROM damages WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return models.Damage{}, err
	}
	return d, nil
}

// DeleteDamage removes a damage while holding its claim PENDING.
func (s *Store) DeleteDamage(ctx context.Context, id string) error {
	claimID, err := s.damageClaim(ctx, id)
	if err != nil {
		return err
	}
	return s.withPendingClaim(ctx, claimID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM damages WHERE id = $1`, id)
		return expectOne(res, err)
	})
}

// GetDamageWithClaimStatus joins the damage to its claim.
func (s *Store) GetDamageWithClaimStatus(ctx context.Context, id string) (string, models.ClaimStatus, error) {
	var (
		claimID string
		status  models.ClaimStatus
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT d.claim_id, c.status FROM damages d JOIN claims c ON c.id = d.claim_id WHERE d.id = $1`, id).
		Scan(&claimID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", storage.ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return claimID, status, nil
}

// DeleteClaim removes a claim; damages go with it through ON DELETE CASCADE.
func (s *Store) DeleteClaim(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE id = $1`, id)
	return expectOne(res, err)
}

func (s *Store) damageClaim(ctx context.Context, id string) (string, error) {
	var claimID string
	err := s.db.QueryRowContext(ctx, `SELECT claim_id FROM damages WHERE id = $1`, id).Scan(&claimID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	return claimID, err
}

// withPendingClaim runs fn in a transaction after a no-op conditional UPDATE on
// the claim row. On PostgreSQL the UPDATE takes the row lock; on SQLite the
// transaction holds the database write lock.
func (s *Store) withPendingClaim(ctx context.Context, claimID string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE claims SET status = status WHERE id = $1 AND status = $2`, claimID, models.StatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := getClaim(ctx, tx, claimID); err != nil {
			return err
		}
		return storage.ErrConflict
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
