// Package storagetest holds the behavioural contract every storage.Store must pass.
package storagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/kylejryan/claims-manager/internal/models"
	"github.com/kylejryan/claims-manager/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) storage.Store

// Run executes the contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateAndGetClaim", testCreateAndGetClaim},
		{"GetMissingClaim", testGetMissingClaim},
		{"ListClaimsOrdered", testListClaimsOrdered},
		{"SetClaimStatusSwaps", testSetClaimStatusSwaps},
		{"SetClaimStatusConflict", testSetClaimStatusConflict},
		{"SetClaimStatusMissing", testSetClaimStatusMissing},
		{"SetClaimStatusRace", testSetClaimStatusRace},
		{"DamageRoundTrip", testDamageRoundTrip},
		{"DamagesInInsertionOrder", testDamagesInInsertionOrder},
		{"HasDamageWithSeverity", testHasDamageWithSeverity},
		{"CreateDamageRequiresPending", testCreateDamageRequiresPending},
		{"CreateDamageMissingClaim", testCreateDamageMissingClaim},
		{"UpdateDamage", testUpdateDamage},
		{"UpdateDamageRequiresPending", testUpdateDamageRequiresPending},
		{"DeleteDamage", testDeleteDamage},
		{"DeleteDamageRequiresPending", testDeleteDamageRequiresPending},
		{"MissingDamage", testMissingDamage},
		{"ListDamages", testListDamages},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func strPtr(s string) *string { return &s }

// Fields returns canonical damage fields for tests.
func Fields(part string, sv models.Severity, price string) models.DamageFields {
	return models.DamageFields{
		Part:     part,
		Severity: sv,
		ImageURL: "https://img.example.com/" + part + ".jpg",
		Price:    models.MustPrice(price),
		Score:    5,
	}
}

func newClaim(t *testing.T, s storage.Store, title string) models.Claim {
	t.Helper()
	c, err := s.CreateClaim(context.Background(), models.NewClaim{Title: title, Description: strPtr(title + " description")})
	require.NoError(t, err)
	return c
}

func testCreateAndGetClaim(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c, err := s.CreateClaim(ctx, models.NewClaim{Title: "Rear bumper"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, models.StatusPending, c.Status)
	assert.Nil(t, c.Description)

	got, err := s.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "Rear bumper", got.Title)
	assert.Nil(t, got.Description)
	assert.Equal(t, models.StatusPending, got.Status)

	withDesc, err := s.CreateClaim(ctx, models.NewClaim{Title: "Hail", Description: strPtr("roof dents")})
	require.NoError(t, err)
	got, err = s.GetClaim(ctx, withDesc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Description)
	assert.Equal(t, "roof dents", *got.Description)
}

func testGetMissingClaim(t *testing.T, s storage.Store) {
	_, err := s.GetClaim(context.Background(), "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testListClaimsOrdered(t *testing.T, s storage.Store) {
	ctx := context.Background()
	empty, err := s.ListClaims(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	a := newClaim(t, s, "a")
	b := newClaim(t, s, "b")
	c := newClaim(t, s, "c")

	got, err := s.ListClaims(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func testSetClaimStatusSwaps(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newClaim(t, s, "swap")

	updated, err := s.SetClaimStatus(ctx, c.ID, models.StatusPending, models.StatusInReview)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, updated.Status)

	got, err := s.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, got.Status)
}

func testSetClaimStatusConflict(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newClaim(t, s, "conflict")

	_, err := s.SetClaimStatus(ctx, c.ID, models.StatusInReview, models.StatusFinalized)
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := s.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status, "a failed swap must not write")
}

func testSetClaimStatusRace(t *testing.T, s storage.Store) {
	ctx := context.Background()
	targets := []models.ClaimStatus{models.StatusCanceled, models.StatusInReview}

	for round := 0; round < 20; round++ {
		c := newClaim(t, s, "race")

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			errs  = make([]error, len(targets))
		)
		for i, to := range targets {
			wg.Add(1)
			go func(i int, to models.ClaimStatus) {
				defer wg.Done()
				<-start
				_, errs[i] = s.SetClaimStatus(ctx, c.ID, models.StatusPending, to)
			}(i, to)
		}
		close(start)
		wg.Wait()

		winner := -1
		for i, err := range errs {
			if err == nil {
				require.Equal(t, -1, winner, "round %d: both swaps succeeded", round)
				winner = i
				continue
			}
			require.ErrorIs(t, err, storage.ErrConflict, "round %d", round)
		}
		require.NotEqual(t, -1, winner, "round %d: no swap succeeded", round)

		got, err := s.GetClaim(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, targets[winner], got.Status, "round %d", round)
	}
}

func testSetClaimStatusMissing(t *testing.T, s storage.Store) {
	_, err := s.SetClaimStatus(context.Background(), "missing", models.StatusPending, models.StatusInReview)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDamageRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newClaim(t, s, "roundtrip")

	d, err := s.CreateDamage(ctx, c.ID, Fields("door", models.SeverityMedium, "100.50"))
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, c.ID, d.ClaimID)
	assert.Equal(t, "100.50", d.Price.String())

	got, err := s.GetDamagesForClaim(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, d.ID, got[0].ID)
	assert.Equal(t, "door", got[0].Part)
	assert.Equal(t, models.SeverityMedium, got[0].Severity)
	assert.Equal(t, "https://img.example.com/door.jpg", got[0].ImageURL)
	assert.Equal(t, "100.50", got[0].Price.String())
	assert.Equal(t, models.Score(5), got[0].Score)

	claimID, status, err := s.GetDamageWithClaimStatus(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, claimID)
	assert.Equal(t, models.StatusPending, status)
}

func testDamagesInInsertionOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newClaim(t, s, "order")
	other := newClaim(t, s, "other")

	var want []string
	for _, part := range []string{"hood", "trunk", "mirror", "wheel"} {
		d, err := s.CreateDamage(ctx, c.ID, Fields(part, models.SeverityLow, "1"))
		require.NoError(t, err)
		want = append(want, d.Part)
	}
	_, err := s.CreateDamage(ctx, other.ID, Fields("roof", models.SeverityLow, "1"))
	require.NoError(t, err)

	got, err := s.GetDamagesForClaim(ctx, c.ID)
	require.NoError(t, err)
	parts := make([]string, 0, len(got))
	for _, d := range got {
		parts = append(parts, d.Part)
	}
	assert.Equal(t, want, parts)

	none, err := s.GetDamagesForClaim(ctx, newClaim(t, s, "empty").ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testHasDamageWithSeverity(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newClaim(t, s, "severity")
	other := newClaim(t, s, "other")

	has, err := s.HasDamageWithSeverity(ctx, c.ID, models.SeverityHigh)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = s.CreateDamage(ctx, other.ID, Fields("axle", models.SeverityHigh, "10"))
	require.NoError(t, err)
	_, err = s.CreateDamage(ctx, c.ID, Fields("light", models.SeverityLow, "10"))
	require.NoError(t, err)

	has, err = s.HasDamageWithSeverity(ctx, c.ID, models.SeverityHigh)
	require.NoError(t, err)
	assert.False(t, has, "another claim's HIGH damage must not count")

	_, err = s.CreateDamage(ctx, c.ID, Fields("frame", models.SeverityHigh, "10"))
	require.NoError(t, err)
	has, err = s.HasDamageWithSeverity(ctx, c.ID, models.SeverityHigh)
	require.NoError(t, err)
	assert.True(t, has)
}

func testCreateDamageRequiresPending(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newClaim(t, s, "locked")
	_, err := s.SetClaimStatus(ctx, c.ID, models.StatusPending, models.StatusInReview)
	require.NoError(t, err)

	_, err = s.CreateDamage(ctx, c.ID, Fields("door", models.SeverityLow, "1"))
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := s.GetDamagesForClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testCreateDamageMissingClaim(t *testing.T, s storage.Store) {
	_, err := s.CreateDamage(context.Background(), "missing", Fields("door", models.SeverityLow, "1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUpdateDamage(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newClaim(t, s, "update")
	d, err := s.CreateDamage(ctx, c.ID, Fields("door", models.SeverityLow, "1"))
	require.NoError(t, err)

	f := Fields("door panel", models.SeverityHigh, "250.75")
	f.Score = 9
	updated, err := s.UpdateDamage(ctx, d.ID, f)
	require.NoError(t, err)
	assert.Equal(t, d.ID, updated.ID)
	assert.Equal(t, c.ID, updated.ClaimID)
	assert.Equal(t, "door panel", updated.Part)

	got, err := s.GetDamagesForClaim(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SeverityHigh, got[0].Severity)
	assert.Equal(t, "250.75", got[0].Price.String())
	assert.Equal(t, models.Score(9), got[0].Score)
}

func testUpdateDamageRequiresPending(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newClaim(t, s, "update-locked")
	d, err := s.CreateDamage(ctx, c.ID, Fields("door", models.SeverityLow, "1"))
	require.NoError(t, err)
	_, err = s.SetClaimStatus(ctx, c.ID, models.StatusPending, models.StatusCanceled)
	require.NoError(t, err)

	_, err = s.UpdateDamage(ctx, d.ID, Fields("door", models.SeverityHigh, "9"))
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := s.GetDamagesForClaim(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SeverityLow, got[0].Severity)
}

func testDeleteDamage(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newClaim(t, s, "delete")
	d, err := s.CreateDamage(ctx, c.ID, Fields("door", models.SeverityLow, "1"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteDamage(ctx, d.ID))

	got, err := s.GetDamagesForClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.ErrorIs(t, s.DeleteDamage(ctx, d.ID), storage.ErrNotFound)
}

func testDeleteDamageRequiresPending(t *testing.T, s storage.Store) {
	ctx := context.Background()
	c := newClaim(t, s, "delete-locked")
	d, err := s.CreateDamage(ctx, c.ID, Fields("door", models.SeverityLow, "1"))
	require.NoError(t, err)
	_, err = s.SetClaimStatus(ctx, c.ID, models.StatusPending, models.StatusFinalized)
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteDamage(ctx, d.ID), storage.ErrConflict)

	got, err := s.GetDamagesForClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func testMissingDamage(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, _, err := s.GetDamageWithClaimStatus(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.UpdateDamage(ctx, "missing", Fields("door", models.SeverityLow, "1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDamage(ctx, "missing"), storage.ErrNotFound)
}

func testListDamages(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := newClaim(t, s, "a")
	b := newClaim(t, s, "b")
	_, err := s.CreateDamage(ctx, a.ID, Fields("hood", models.SeverityLow, "1"))
	require.NoError(t, err)
	_, err = s.CreateDamage(ctx, b.ID, Fields("roof", models.SeverityLow, "2"))
	require.NoError(t, err)

	got, err := s.ListDamages(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hood", got[0].Part)
	assert.Equal(t, "roof", got[1].Part)
}
