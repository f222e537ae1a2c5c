package ddb

import (
	"strings"
	"time"

	"github.com/kylejryan/claims-manager/internal/models"
)

// Single-table layout:
//
//	claim   PK=CLAIM#<claim>  SK=META
//	damage  PK=CLAIM#<claim>  SK=DAMAGE#<damage>
//	pointer PK=DAMAGE#<damage> SK=META            (claim_id, for lookup by damage id)
const (
	claimPrefix  = "CLAIM#"
	damagePrefix = "DAMAGE#"
	metaSK       = "META"

	entityClaim   = "CLAIM"
	entityDamage  = "DAMAGE"
	entityPointer = "DAMAGE_POINTER"
)

// NowISO returns the current time in ISO8601 format.
func NowISO() string { return time.Now().UTC().Format(time.RFC3339) }

// ClaimKey returns the partition and sort key of a claim item.
func ClaimKey(claimID string) (pk, sk string) {
	return claimPrefix + claimID, metaSK
}

// DamageKey returns the keys of a damage item, stored in its claim's partition.
func DamageKey(claimID, damageID string) (pk, sk string) {
	return claimPrefix + claimID, damagePrefix + damageID
}

// PointerKey returns the keys of the item mapping a damage id to its claim.
func PointerKey(damageID string) (pk, sk string) {
	return damagePrefix + damageID, metaSK
}

// DamageIDFromSK extracts the damage id from a damage sort key.
func DamageIDFromSK(sk string) (string, bool) {
	if !strings.HasPrefix(sk, damagePrefix) {
		return "", false
	}
	return strings.TrimPrefix(sk, damagePrefix), true
}

type claimItem struct {
	PK          string             `dynamodbav:"PK"`
	SK          string             `dynamodbav:"SK"`
	Entity      string             `dynamodbav:"entity"`
	ClaimID     string             `dynamodbav:"claim_id"`
	Title       string             `dynamodbav:"title"`
	Description *string            `dynamodbav:"description,omitempty"`
	Status      models.ClaimStatus `dynamodbav:"status"`
	CreatedAt   string             `dynamodbav:"created_at"`
}

func (it claimItem) claim() models.Claim {
	return models.Claim{ID: it.ClaimID, Title: it.Title, Description: it.Description, Status: it.Status}
}

type damageItem struct {
	PK       string          `dynamodbav:"PK"`
	SK       string          `dynamodbav:"SK"`
	Entity   string          `dynamodbav:"entity"`
	DamageID string          `dynamodbav:"damage_id"`
	ClaimID  string          `dynamodbav:"claim_id"`
	Part     string          `dynamodbav:"part"`
	Severity models.Severity `dynamodbav:"severity"`
	ImageURL string          `dynamodbav:"image_url"`
	Price    models.Price    `dynamodbav:"price"`
	Score    int             `dynamodbav:"score"`
}

func newDamageItem(d models.Damage) damageItem {
	pk, sk := DamageKey(d.ClaimID, d.ID)
	return damageItem{
		PK: pk, SK: sk, Entity: entityDamage,
		DamageID: d.ID, ClaimID: d.ClaimID,
		Part: d.Part, Severity: d.Severity, ImageURL: d.ImageURL, Price: d.Price, Score: int(d.Score),
	}
}

func (it damageItem) damage() models.Damage {
	return models.Damage{
		ID: it.DamageID, ClaimID: it.ClaimID,
		Part: it.Part, Severity: it.Severity, ImageURL: it.ImageURL, Price: it.Price, Score: models.Score(it.Score),
	}
}

type pointerItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	Entity  string `dynamodbav:"entity"`
	ClaimID string `dynamodbav:"claim_id"`
}
