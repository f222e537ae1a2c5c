// Package lifecycle owns the claim status state machine and gates damage mutation.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kylejryan/claims-manager/internal/logging"
	"github.com/kylejryan/claims-manager/internal/models"
	"github.com/kylejryan/claims-manager/internal/storage"
	"github.com/kylejryan/claims-manager/internal/validate"
)

// Engine applies claim business rules on top of a Store.
// Every gate re-reads the claim right before the conditional write it guards.
type Engine struct {
	store storage.Store
	log   *slog.Logger
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(store storage.Store, log *slog.Logger) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{store: store, log: log}
}

// CreateClaim validates and stores a new PENDING claim.
func (e *Engine) CreateClaim(ctx context.Context, title string, description *string) (models.Claim, error) {
	const op = "create_claim"
	nc, err := validate.Claim(title, description)
	if err != nil {
		return models.Claim{}, withOp(op, err)
	}
	c, err := e.store.CreateClaim(ctx, nc)
	if err != nil {
		return models.Claim{}, models.StorageFailure(op, err)
	}
	if c.Damages == nil {
		c.Damages = []models.Damage{}
	}
	e.log.Info("claim.created", "claim_id", c.ID)
	return c, nil
}

// GetClaim returns the claim with its damages.
func (e *Engine) GetClaim(ctx context.Context, id string) (models.Claim, error) {
	return e.loadClaim(ctx, "get_claim", id)
}

// ListClaims returns every claim with its damages, ordered by id.
func (e *Engine) ListClaims(ctx context.Context) ([]models.Claim, error) {
	const op = "list_claims"
	summaries, err := e.store.ListClaims(ctx)
	if err != nil {
		return nil, models.StorageFailure(op, err)
	}
	claims := make([]models.Claim, 0, len(summaries))
	for _, s := range summaries {
		damages, err := e.store.GetDamagesForClaim(ctx, s.ID)
		if err != nil {
			return nil, models.StorageFailure(op, err)
		}
		claims = append(claims, withDamages(s, damages))
	}
	return claims, nil
}

// ListDamages returns every damage across claims.
func (e *Engine) ListDamages(ctx context.Context) ([]models.Damage, error) {
	damages, err := e.store.ListDamages(ctx)
	if err != nil {
		return nil, models.StorageFailure("list_damages", err)
	}
	return damages, nil
}

// AttemptTransition moves a claim to target if the state machine and the
// finalization rule allow it, and returns the claim as persisted.
//
// The finalization rule reads the description as currently stored.
func (e *Engine) AttemptTransition(ctx context.Context, claimID string, target models.ClaimStatus) (models.Claim, error) {
	const op = "attempt_transition"

	// 1) current state
	c, err := e.store.GetClaim(ctx, claimID)
	if err != nil {
		return models.Claim{}, storeErr(op, "claim", claimID, err)
	}

	// 2) edge
	if err := ValidateTransition(c.Status, target); err != nil {
		e.log.Debug("claim.transition.rejected", "claim_id", claimID, "from", c.Status, "to", target)
		return models.Claim{}, withOp(op, err)
	}

	// 3) HIGH damages need a long description
	if target == models.StatusFinalized {
		hasHigh, err := e.store.HasDamageWithSeverity(ctx, claimID, models.SeverityHigh)
		if err != nil {
			return models.Claim{}, models.StorageFailure(op, err)
		}
		if err := CheckFinalization(c.Status, hasHigh, c.Description); err != nil {
			e.log.Debug("claim.finalize.rejected", "claim_id", claimID, "from", c.Status)
			return models.Claim{}, withOp(op, err)
		}
	}

	// 4) persist, only if nobody moved the claim in the meantime
	if _, err := e.store.SetClaimStatus(ctx, claimID, c.Status, target); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return models.Claim{}, e.lostTransitionRace(ctx, op, claimID, target)
		}
		return models.Claim{}, storeErr(op, "claim", claimID, err)
	}
	e.log.Info("claim.status.changed", "claim_id", claimID, "from", c.Status, "to", target)

	// 5) authoritative state
	return e.loadClaim(ctx, op, claimID)
}

// lostTransitionRace reports a CAS failure against the status actually stored now.
func (e *Engine) lostTransitionRace(ctx context.Context, op, claimID string, target models.ClaimStatus) error {
	fresh, err := e.store.GetClaim(ctx, claimID)
	if err != nil {
		return storeErr(op, "claim", claimID, err)
	}
	e.log.Warn("claim.transition.conflict", "claim_id", claimID, "current", fresh.Status, "to", target)
	if verr := ValidateTransition(fresh.Status, target); verr != nil {
		return withOp(op, verr)
	}
	return &models.Error{
		Kind: models.KindIllegalTransition, Op: op, Current: fresh.Status, Target: target,
		Msg: "claim status changed concurrently; retry the request",
	}
}

// EnsureEditable fails ClaimNotEditable unless the claim is PENDING right now.
func (e *Engine) EnsureEditable(ctx context.Context, claimID string) error {
	_, err := e.editableClaim(ctx, "ensure_editable", claimID)
	return err
}

// AttemptDamageCreate adds a damage to a PENDING claim.
func (e *Engine) AttemptDamageCreate(ctx context.Context, claimID string, in validate.DamageInput) (models.Damage, error) {
	const op = "attempt_damage_create"
	f, err := validate.Damage(in)
	if err != nil {
		return models.Damage{}, withOp(op, err)
	}
	if _, err := e.editableClaim(ctx, op, claimID); err != nil {
		return models.Damage{}, err
	}
	d, err := e.store.CreateDamage(ctx, claimID, f)
	if err != nil {
		return models.Damage{}, e.damageWriteErr(ctx, op, claimID, "claim", claimID, err)
	}
	e.log.Info("damage.created", "claim_id", claimID, "damage_id", d.ID)
	return d, nil
}

// AttemptDamageUpdate replaces the fields of a damage whose claim is PENDING.
func (e *Engine) AttemptDamageUpdate(ctx context.Context, damageID string, in validate.DamageInput) (models.Damage, error) {
	const op = "attempt_damage_update"
	f, err := validate.Damage(in)
	if err != nil {
		return models.Damage{}, withOp(op, err)
	}
	claimID, err := e.editableDamage(ctx, op, damageID)
	if err != nil {
		return models.Damage{}, err
	}
	d, err := e.store.UpdateDamage(ctx, damageID, f)
	if err != nil {
		return models.Damage{}, e.damageWriteErr(ctx, op, claimID, "damage", damageID, err)
	}
	e.log.Info("damage.updated", "claim_id", claimID, "damage_id", damageID)
	return d, nil
}

// AttemptDamageDelete removes a damage whose claim is PENDING.
func (e *Engine) AttemptDamageDelete(ctx context.Context, damageID string) error {
	const op = "attempt_damage_delete"
	claimID, err := e.editableDamage(ctx, op, damageID)
	if err != nil {
		return err
	}
	if err := e.store.DeleteDamage(ctx, damageID); err != nil {
		return e.damageWriteErr(ctx, op, claimID, "damage", damageID, err)
	}
	e.log.Info("damage.deleted", "claim_id", claimID, "damage_id", damageID)
	return nil
}

func (e *Engine) editableClaim(ctx context.Context, op, claimID string) (models.Claim, error) {
	c, err := e.store.GetClaim(ctx, claimID)
	if err != nil {
		return models.Claim{}, storeErr(op, "claim", claimID, err)
	}
	if !c.Status.Editable() {
		return models.Claim{}, notEditable(op, c.Status)
	}
	return c, nil
}

func (e *Engine) editableDamage(ctx context.Context, op, damageID string) (string, error) {
	claimID, status, err := e.store.GetDamageWithClaimStatus(ctx, damageID)
	if err != nil {
		return "", storeErr(op, "damage", damageID, err)
	}
	if !status.Editable() {
		return "", notEditable(op, status)
	}
	return claimID, nil
}

// damageWriteErr maps a failed gated write. A lost precondition means the claim
// left PENDING after the gate passed.
func (e *Engine) damageWriteErr(ctx context.Context, op, claimID, entity, id string, err error) error {
	if !errors.Is(err, storage.ErrConflict) {
		return storeErr(op, entity, id, err)
	}
	c, gerr := e.store.GetClaim(ctx, claimID)
	if gerr != nil {
		return storeErr(op, "claim", claimID, gerr)
	}
	e.log.Warn("damage.write.conflict", "claim_id", claimID, "status", c.Status)
	return notEditable(op, c.Status)
}

func (e *Engine) loadClaim(ctx context.Context, op, id string) (models.Claim, error) {
	c, err := e.store.GetClaim(ctx, id)
	if err != nil {
		return models.Claim{}, storeErr(op, "claim", id, err)
	}
	damages, err := e.store.GetDamagesForClaim(ctx, id)
	if err != nil {
		return models.Claim{}, models.StorageFailure(op, err)
	}
	return withDamages(c.Summary(), damages), nil
}

func withDamages(s models.ClaimSummary, damages []models.Damage) models.Claim {
	if damages == nil {
		damages = []models.Damage{}
	}
	return models.Claim{ID: s.ID, Title: s.Title, Description: s.Description, Status: s.Status, Damages: damages}
}

func notEditable(op string, status models.ClaimStatus) error {
	return &models.Error{
		Kind: models.KindClaimNotEditable, Op: op, Current: status,
		Msg: "damages can only be managed when claim is PENDING",
	}
}

func storeErr(op, entity, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return models.NotFound(op, entity, id)
	}
	return models.StorageFailure(op, err)
}

func withOp(op string, err error) error {
	var me *models.Error
	if errors.As(err, &me) && me.Op == "" {
		cp := *me
		cp.Op = op
		return &cp
	}
	return err
}
