package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/kylejryan/claims-manager/internal/models"
	"github.com/kylejryan/claims-manager/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a mock implementation of storage.Store for testing.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetClaim(ctx context.Context, id string) (models.Claim, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Claim), args.Error(1)
}

func (m *MockStore) ListClaims(ctx context.Context) ([]models.ClaimSummary, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]models.ClaimSummary)
	return out, args.Error(1)
}

func (m *MockStore) CreateClaim(ctx context.Context, c models.NewClaim) (models.Claim, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(models.Claim), args.Error(1)
}

func (m *MockStore) SetClaimStatus(ctx context.Context, id string, from, to models.ClaimStatus) (models.Claim, error) {
	args := m.Called(ctx, id, from, to)
	return args.Get(0).(models.Claim), args.Error(1)
}

func (m *MockStore) GetDamagesForClaim(ctx context.Context, claimID string) ([]models.Damage, error) {
	args := m.Called(ctx, claimID)
	out, _ := args.Get(0).([]models.Damage)
	return out, args.Error(1)
}

func (m *MockStore) HasDamageWithSeverity(ctx context.Context, claimID string, sv models.Severity) (bool, error) {
	args := m.Called(ctx, claimID, sv)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ListDamages(ctx context.Context) ([]models.Damage, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]models.Damage)
	return out, args.Error(1)
}

func (m *MockStore) CreateDamage(ctx context.Context, claimID string, f models.DamageFields) (models.Damage, error) {
	args := m.Called(ctx, claimID, f)
	return args.Get(0).(models.Damage), args.Error(1)
}

func (m *MockStore) UpdateDamage(ctx context.Context, id string, f models.DamageFields) (models.Damage, error) {
	args := m.Called(ctx, id, f)
	return args.Get(0).(models.Damage), args.Error(1)
}

func (m *MockStore) DeleteDamage(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) GetDamageWithClaimStatus(ctx context.Context, id string) (string, models.ClaimStatus, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Get(1).(models.ClaimStatus), args.Error(2)
}

func (m *MockStore) Close() error { return m.Called().Error(0) }

func claimIn(status models.ClaimStatus) models.Claim {
	return models.Claim{ID: "C1", Title: "t", Status: status}
}

func TestTransitionLostRaceReportsFreshStatus(t *testing.T) {
	st := new(MockStore)
	e := NewEngine(st, nil)
	ctx := context.Background()

	st.On("GetClaim", ctx, "C1").Return(claimIn(models.StatusPending), nil).Once()
	st.On("SetClaimStatus", ctx, "C1", models.StatusPending, models.StatusCanceled).
		Return(models.Claim{}, storage.ErrConflict)
	st.On("GetClaim", ctx, "C1").Return(claimIn(models.StatusInReview), nil).Once()

	_, err := e.AttemptTransition(ctx, "C1", models.StatusCanceled)
	var me *models.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, models.KindIllegalTransition, me.Kind)
	assert.Equal(t, models.StatusInReview, me.Current)
	assert.Equal(t, models.StatusCanceled, me.Target)
	st.AssertExpectations(t)
}

func TestTransitionLostRaceToSameEdge(t *testing.T) {
	st := new(MockStore)
	e := NewEngine(st, nil)
	ctx := context.Background()

	// someone else moved the claim to IN_REVIEW, from where FINALIZED is still legal
	st.On("GetClaim", ctx, "C1").Return(claimIn(models.StatusPending), nil).Once()
	st.On("HasDamageWithSeverity", ctx, "C1", models.SeverityHigh).Return(false, nil)
	st.On("SetClaimStatus", ctx, "C1", models.StatusPending, models.StatusFinalized).
		Return(models.Claim{}, storage.ErrConflict)
	st.On("GetClaim", ctx, "C1").Return(claimIn(models.StatusInReview), nil).Once()

	_, err := e.AttemptTransition(ctx, "C1", models.StatusFinalized)
	var me *models.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, models.KindIllegalTransition, me.Kind)
	assert.Equal(t, models.StatusInReview, me.Current)
	assert.Contains(t, me.Msg, "concurrently")
}

func TestStoreErrorsBecomeStorageFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	t.Run("read", func(t *testing.T) {
		st := new(MockStore)
		st.On("GetClaim", ctx, "C1").Return(models.Claim{}, boom)
		_, err := NewEngine(st, nil).AttemptTransition(ctx, "C1", models.StatusInReview)
		assert.ErrorIs(t, err, models.ErrStorageFailure)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("severity lookup", func(t *testing.T) {
		st := new(MockStore)
		st.On("GetClaim", ctx, "C1").Return(claimIn(models.StatusInReview), nil)
		st.On("HasDamageWithSeverity", ctx, "C1", models.SeverityHigh).Return(false, boom)
		_, err := NewEngine(st, nil).AttemptTransition(ctx, "C1", models.StatusFinalized)
		assert.ErrorIs(t, err, models.ErrStorageFailure)
		st.AssertNotCalled(t, "SetClaimStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("status write", func(t *testing.T) {
		st := new(MockStore)
		st.On("GetClaim", ctx, "C1").Return(claimIn(models.StatusPending), nil)
		st.On("SetClaimStatus", ctx, "C1", models.StatusPending, models.StatusInReview).Return(models.Claim{}, boom)
		_, err := NewEngine(st, nil).AttemptTransition(ctx, "C1", models.StatusInReview)
		assert.ErrorIs(t, err, models.ErrStorageFailure)
	})

	t.Run("deadline", func(t *testing.T) {
		st := new(MockStore)
		st.On("GetClaim", ctx, "C1").Return(models.Claim{}, context.DeadlineExceeded)
		err := NewEngine(st, nil).EnsureEditable(ctx, "C1")
		assert.ErrorIs(t, err, models.ErrStorageFailure)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("create claim", func(t *testing.T) {
		st := new(MockStore)
		st.On("CreateClaim", ctx, mock.Anything).Return(models.Claim{}, boom)
		_, err := NewEngine(st, nil).CreateClaim(ctx, "title", nil)
		assert.ErrorIs(t, err, models.ErrStorageFailure)
	})
}

func TestDamageWriteLostRace(t *testing.T) {
	st := new(MockStore)
	e := NewEngine(st, nil)
	ctx := context.Background()

	st.On("GetClaim", ctx, "C1").Return(claimIn(models.StatusPending), nil).Once()
	st.On("CreateDamage", ctx, "C1", mock.AnythingOfType("models.DamageFields")).
		Return(models.Damage{}, storage.ErrConflict)
	st.On("GetClaim", ctx, "C1").Return(claimIn(models.StatusFinalized), nil).Once()

	_, err := e.AttemptDamageCreate(ctx, "C1", damageInput("LOW"))
	var me *models.Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, models.KindClaimNotEditable, me.Kind)
	assert.Equal(t, models.StatusFinalized, me.Current)
	st.AssertExpectations(t)
}

func TestDamageDeleteVanished(t *testing.T) {
	st := new(MockStore)
	e := NewEngine(st, nil)
	ctx := context.Background()

	st.On("GetDamageWithClaimStatus", ctx, "D1").Return("C1", models.StatusPending, nil)
	st.On("DeleteDamage", ctx, "D1").Return(storage.ErrNotFound)

	err := e.AttemptDamageDelete(ctx, "D1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
