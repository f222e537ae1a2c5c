// Package storage defines the record store contract shared by every persistence backend.
//
// Stores do not validate input. They do enforce status preconditions atomically:
// a claim status change applies only if the current status equals the expected one,
// and a damage write applies only while the parent claim is PENDING.
package storage

import (
	"context"
	"errors"

	"github.com/kylejryan/claims-manager/internal/models"
)

var (
	// ErrNotFound is returned when the claim or damage does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write lost its precondition.
	ErrConflict = errors.New("precondition failed")
)

// Store is the persistence collaborator of the lifecycle engine.
type Store interface {
	GetClaim(ctx context.Context, id string) (models.Claim, error)
	ListClaims(ctx context.Context) ([]models.ClaimSummary, error)
	CreateClaim(ctx context.Context, c models.NewClaim) (models.Claim, error)
	// SetClaimStatus moves claim id from one status to another. It returns
	// ErrConflict, leaving the claim untouched, when the current status is not from.
	SetClaimStatus(ctx context.Context, id string, from, to models.ClaimStatus) (models.Claim, error)

	GetDamagesForClaim(ctx context.Context, claimID string) ([]models.Damage, error)
	HasDamageWithSeverity(ctx context.Context, claimID string, sv models.Severity) (bool, error)
	ListDamages(ctx context.Context) ([]models.Damage, error)
	// CreateDamage, UpdateDamage and DeleteDamage return ErrConflict when the
	// parent claim is not PENDING at write time.
	CreateDamage(ctx context.Context, claimID string, f models.DamageFields) (models.Damage, error)
	UpdateDamage(ctx context.Context, id string, f models.DamageFields) (models.Damage, error)
	DeleteDamage(ctx context.Context, id string) error
	GetDamageWithClaimStatus(ctx context.Context, id string) (claimID string, status models.ClaimStatus, err error)

	Close() error
}
