package lifecycle

import (
	"fmt"
	"unicode/utf8"

	"github.com/kylejryan/claims-manager/internal/models"
)

// MinFinalizeDescription is the description length a claim with HIGH damages
// must exceed before it can be finalized.
const MinFinalizeDescription = 100

// AllowedTransitions returns the statuses reachable from s in one step.
func AllowedTransitions(s models.ClaimStatus) []models.ClaimStatus {
	switch s {
	case models.StatusPending:
		return []models.ClaimStatus{models.StatusInReview, models.StatusFinalized, models.StatusCanceled}
	case models.StatusInReview:
		return []models.ClaimStatus{models.StatusFinalized}
	case models.StatusFinalized, models.StatusCanceled:
		return nil
	}
	return nil
}

// CanTransition checks if a transition from one status to another is allowed.
func CanTransition(from, to models.ClaimStatus) bool {
	for _, s := range AllowedTransitions(from) {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an IllegalTransition error if the edge is not allowed.
func ValidateTransition(from, to models.ClaimStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	msg := fmt.Sprintf("cannot move claim from %s to %s", from, to)
	switch {
	case to == models.StatusCanceled:
		msg = "only PENDING claims can be CANCELED"
	case from.IsTerminal():
		msg = fmt.Sprintf("claim is %s and can no longer change status", from)
	case from == to:
		msg = fmt.Sprintf("claim is already %s", from)
	}
	return &models.Error{Kind: models.KindIllegalTransition, Current: from, Target: to, Msg: msg}
}

// CheckFinalization enforces the documentation rule for finalizing a claim
// that owns HIGH severity damage.
func CheckFinalization(current models.ClaimStatus, hasHigh bool, description *string) error {
	if !hasHigh {
		return nil
	}
	if description != nil && utf8.RuneCountInString(*description) > MinFinalizeDescription {
		return nil
	}
	return &models.Error{
		Kind:    models.KindFinalizationRequirementNotMet,
		Current: current,
		Target:  models.StatusFinalized,
		Msg:     fmt.Sprintf("claims with HIGH severity damages require description > %d chars to be FINALIZED", MinFinalizeDescription),
	}
}
