// Package memstore provides an in-memory claim store for tests and local runs.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/kylejryan/claims-manager/internal/models"
	"github.com/kylejryan/claims-manager/internal/storage"

	"github.com/oklog/ulid/v2"
)

// Store is an in-memory implementation of storage.Store.
// Conditional writes check and write under the same lock.
type Store struct {
	mu      sync.RWMutex
	claims  map[string]models.Claim // Damages are not kept here
	damages map[string]models.Damage
	newID   func() string
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		claims:  make(map[string]models.Claim),
		damages: make(map[string]models.Damage),
		newID:   func() string { return ulid.Make().String() },
	}
}

// GetClaim returns the claim header; Damages is left nil.
func (s *Store) GetClaim(ctx context.Context, id string) (models.Claim, error) {
	if err := ctx.Err(); err != nil {
		return models.Claim{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return models.Claim{}, storage.ErrNotFound
	}
	return copyClaim(c), nil
}

// ListClaims returns all claims sorted by ID.
func (s *Store) ListClaims(ctx context.Context) ([]models.ClaimSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.claims))
	for id := range s.claims {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.ClaimSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyClaim(s.claims[id]).Summary())
	}
	return out, nil
}

// CreateClaim stores a new PENDING claim.
func (s *Store) CreateClaim(ctx context.Context, nc models.NewClaim) (models.Claim, error) {
	if err := ctx.Err(); err != nil {
		return models.Claim{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := models.Claim{
		ID:          s.newID(),
		Title:       nc.Title,
		Description: copyString(nc.Description),
		Status:      models.StatusPending,
	}
	s.claims[c.ID] = c
	return copyClaim(c), nil
}

// SetClaimStatus swaps the status if it still equals from.
func (s *Store) SetClaimStatus(ctx context.Context, id string, from, to models.ClaimStatus) (models.Claim, error) {
	if err := ctx.Err(); err != nil {
		return models.Claim{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return models.Claim{}, storage.ErrNotFound
	}
	if c.Status != from {
		return models.Claim{}, storage.ErrConflict
	}
	c.Status = to
	s.claims[id] = c
	return copyClaim(c), nil
}

// GetDamagesForClaim returns the claim's damages in insertion order.
func (s *Store) GetDamagesForClaim(ctx context.Context, claimID string) ([]models.Damage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterDamages(func(d models.Damage) bool { return d.ClaimID == claimID }), nil
}

// HasDamageWithSeverity reports whether claimID owns a damage of severity sv.
func (s *Store) HasDamageWithSeverity(ctx context.Context, claimID string, sv models.Severity) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.damages {
		if d.ClaimID == claimID && d.Severity == sv {
			return true, nil
		}
	}
	return false, nil
}

// ListDamages returns all damages sorted by ID.
func (s *Store) ListDamages(ctx context.Context) ([]models.Damage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterDamages(func(models.Damage) bool { return true }), nil
}

// CreateDamage inserts a damage if the claim exists and is PENDING.
func (s *Store) CreateDamage(ctx context.Context, claimID string, f models.DamageFields) (models.Damage, error) {
	if err := ctx.Err(); err != nil {
		return models.Damage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requirePending(claimID); err != nil {
		return models.Damage{}, err
	}
	d := models.Damage{ID: s.newID(), ClaimID: claimID}.WithFields(f)
	s.damages[d.ID] = d
	return d, nil
}

// UpdateDamage replaces a damage's fields if its claim is PENDING.
func (s *Store) UpdateDamage(ctx context.Context, id string, f models.DamageFields) (models.Damage, error) {
	if err := ctx.Err(); err != nil {
		return models.Damage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.damages[id]
	if !ok {
		return models.Damage{}, storage.ErrNotFound
	}
	if err := s.requirePending(d.ClaimID); err != nil {
		return models.Damage{}, err
	}
	d = d.WithFields(f)
	s.damages[id] = d
	return d, nil
}

// DeleteDamage removes a damage if its claim is PENDING.
func (s *Store) DeleteDamage(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.damages[id]
	if !ok {
		return storage.ErrNotFound
	}
	if err := s.requirePending(d.ClaimID); err != nil {
		return err
	}
	delete(s.damages, id)
	return nil
}

// GetDamageWithClaimStatus returns the owning claim and its current status.
func (s *Store) GetDamageWithClaimStatus(ctx context.Context, id string) (string, models.ClaimStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.damages[id]
	if !ok {
		return "", "", storage.ErrNotFound
	}
	c, ok := s.claims[d.ClaimID]
	if !ok {
		return "", "", storage.ErrNotFound
	}
	return c.ID, c.Status, nil
}

// DeleteClaim removes a claim and every damage it owns. The lifecycle engine never
// deletes claims; this exists for fixtures and administrative cleanup.
func (s *Store) DeleteClaim(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.claims, id)
	for did, d := range s.damages {
		if d.ClaimID == id {
			delete(s.damages, did)
		}
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// requirePending must be called with the write lock held.
func (s *Store) requirePending(claimID string) error {
	c, ok := s.claims[claimID]
	if !ok {
		return storage.ErrNotFound
	}
	if c.Status != models.StatusPending {
		return storage.ErrConflict
	}
	return nil
}

// filterDamages must be called with the lock held. IDs are ULIDs, so sorting
// by ID yields insertion order.
func (s *Store) filterDamages(keep func(models.Damage) bool) []models.Damage {
	out := make([]models.Damage, 0)
	for _, d := range s.damages {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyClaim(c models.Claim) models.Claim {
	c.Description = copyString(c.Description)
	c.Damages = nil
	return c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
