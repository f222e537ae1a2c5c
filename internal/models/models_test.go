package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClaimStatus(t *testing.T) {
	for _, s := range ClaimStatuses {
		got, err := ParseClaimStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseClaimStatus(" in_review ")
	require.NoError(t, err)
	assert.Equal(t, StatusInReview, got)

	_, err = ParseClaimStatus("CLOSED")
	assert.True(t, IsKind(err, KindInvalidField))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusPending.Editable())
	assert.False(t, StatusInReview.Editable())
	assert.False(t, StatusFinalized.Editable())
	assert.False(t, StatusCanceled.Editable())

	assert.True(t, StatusFinalized.IsTerminal())
	assert.True(t, StatusCanceled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusInReview.IsTerminal())
}

func TestParseSeverity(t *testing.T) {
	got, err := ParseSeverity("high")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, got)

	_, err = ParseSeverity("CRITICAL")
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestClaimTotalAmount(t *testing.T) {
	c := Claim{Damages: []Damage{
		{Price: MustPrice("100.50"), Severity: SeverityLow},
		{Price: MustPrice("250.75"), Severity: SeverityHigh},
	}}
	assert.Equal(t, "351.25", c.TotalAmount().String())
	assert.True(t, c.HasSeverity(SeverityHigh))
	assert.False(t, c.HasSeverity(SeverityMedium))

	assert.Equal(t, "0.00", Claim{}.TotalAmount().String())
}

func TestDamageWithFields(t *testing.T) {
	d := Damage{ID: "D1", ClaimID: "C1"}
	f := DamageFields{Part: "hood", Severity: SeverityMedium, ImageURL: "https://x.test/a.png", Price: MustPrice("1"), Score: 3}
	got := d.WithFields(f)
	assert.Equal(t, "D1", got.ID)
	assert.Equal(t, "C1", got.ClaimID)
	assert.Equal(t, f, got.Fields())
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Kind: KindIllegalTransition, Op: "attempt_transition", Current: StatusFinalized, Target: StatusPending, Msg: "claim is FINALIZED"}
	assert.Equal(t, "attempt_transition: claim is FINALIZED (current=FINALIZED requested=PENDING)", err.Error())

	err = &Error{Kind: KindClaimNotEditable, Current: StatusInReview, Msg: "locked"}
	assert.Equal(t, "locked (current=IN_REVIEW)", err.Error())

	err = &Error{Kind: KindInvalidScore, Field: "score"}
	assert.Equal(t, "invalid_score (field=score)", err.Error())
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("wrapped: %w", StorageFailure("create_claim", cause))

	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindStorageFailure, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(cause))

	assert.True(t, IsInvalidInput(&Error{Kind: KindInvalidURL}))
	assert.False(t, IsInvalidInput(&Error{Kind: KindClaimNotEditable}))

	nf := NotFound("get_claim", "claim", "C9")
	assert.Equal(t, "get_claim: claim C9 not found", nf.Error())
}
