// Package models defines the claim and damage domain model.
package models

import "strings"

// ClaimStatus represents the review status of an insurance claim.
type ClaimStatus string

// Possible values for ClaimStatus
const (
	StatusPending   ClaimStatus = "PENDING"
	StatusInReview  ClaimStatus = "IN_REVIEW"
	StatusFinalized ClaimStatus = "FINALIZED"
	StatusCanceled  ClaimStatus = "CANCELED"
)

// ClaimStatuses lists every status in declaration order.
var ClaimStatuses = []ClaimStatus{StatusPending, StatusInReview, StatusFinalized, StatusCanceled}

// ParseClaimStatus converts raw text into a ClaimStatus.
func ParseClaimStatus(s string) (ClaimStatus, error) {
	switch st := ClaimStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusInReview, StatusFinalized, StatusCanceled:
		return st, nil
	}
	return "", &Error{Kind: KindInvalidField, Field: "status", Msg: "status must be one of PENDING, IN_REVIEW, FINALIZED, CANCELED"}
}

// IsTerminal reports whether no transition leaves the status.
func (s ClaimStatus) IsTerminal() bool {
	return s == StatusFinalized || s == StatusCanceled
}

// Editable reports whether damages may be mutated while the claim is in s.
func (s ClaimStatus) Editable() bool { return s == StatusPending }

func (s ClaimStatus) String() string { return string(s) }

// Severity classifies how bad a single damage is.
type Severity string

// Possible values for Severity
const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// ParseSeverity converts raw text into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch sv := Severity(strings.ToUpper(strings.TrimSpace(s))); sv {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sv, nil
	}
	return "", &Error{Kind: KindInvalidField, Field: "severity", Msg: "severity must be one of LOW, MEDIUM, HIGH"}
}

func (s Severity) String() string { return string(s) }

// Score is a damage assessment between MinScore and MaxScore inclusive.
type Score int

// Score bounds.
const (
	MinScore Score = 1
	MaxScore Score = 10
)

// Claim is a reported set of damages tracked through review.
type Claim struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	Status      ClaimStatus `json:"status"`
	Damages     []Damage    `json:"damages"`
}

// TotalAmount sums the prices of every damage owned by the claim.
func (c Claim) TotalAmount() Price {
	total := ZeroPrice
	for _, d := range c.Damages {
		total = total.Add(d.Price)
	}
	return total
}

// HasSeverity reports whether any loaded damage has severity sv.
func (c Claim) HasSeverity(sv Severity) bool {
	for _, d := range c.Damages {
		if d.Severity == sv {
			return true
		}
	}
	return false
}

// Summary drops the damages.
func (c Claim) Summary() ClaimSummary {
	return ClaimSummary{ID: c.ID, Title: c.Title, Description: c.Description, Status: c.Status}
}

// ClaimSummary is a claim header without its damages.
type ClaimSummary struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description *string     `json:"description"`
	Status      ClaimStatus `json:"status"`
}

// NewClaim holds validated fields for claim creation.
type NewClaim struct {
	Title       string
	Description *string
}

// Damage is a single itemized harm against a claim.
type Damage struct {
	ID       string   `json:"id"`
	ClaimID  string   `json:"claim_id"`
	Part     string   `json:"part"`
	Severity Severity `json:"severity"`
	ImageURL string   `json:"image_url"`
	Price    Price    `json:"price"`
	Score    Score    `json:"score"`
}

// DamageFields holds the canonical, validated mutable fields of a damage.
type DamageFields struct {
	Part     string
	Severity Severity
	ImageURL string
	Price    Price
	Score    Score
}

// Fields returns the mutable fields of d.
func (d Damage) Fields() DamageFields {
	return DamageFields{Part: d.Part, Severity: d.Severity, ImageURL: d.ImageURL, Price: d.Price, Score: d.Score}
}

// WithFields returns d with its mutable fields replaced by f.
func (d Damage) WithFields(f DamageFields) Damage {
	d.Part, d.Severity, d.ImageURL, d.Price, d.Score = f.Part, f.Severity, f.ImageURL, f.Price, f.Score
	return d
}
