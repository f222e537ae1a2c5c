package ddb

import (
	"context"
	"errors"
	"testing"

	"github.com/kylejryan/claims-manager/internal/models"
	"github.com/kylejryan/claims-manager/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockAPI is a mock implementation of API for testing.
type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.ScanOutput)
	return out, args.Error(1)
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func (m *mockAPI) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DescribeTableOutput)
	return out, args.Error(1)
}

func (m *mockAPI) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.CreateTableOutput)
	return out, args.Error(1)
}

func newRepo() (*Repo, *mockAPI) {
	m := &mockAPI{}
	return &Repo{DB: m, Table: "claims"}, m
}

func claimAV(t *testing.T, id string, status models.ClaimStatus) map[string]types.AttributeValue {
	t.Helper()
	pk, sk := ClaimKey(id)
	item, err := attributevalue.MarshalMap(claimItem{PK: pk, SK: sk, Entity: entityClaim, ClaimID: id, Title: "t", Status: status})
	require.NoError(t, err)
	return item
}

func pointerAV(t *testing.T, damageID, claimID string) map[string]types.AttributeValue {
	t.Helper()
	pk, sk := PointerKey(damageID)
	item, err := attributevalue.MarshalMap(pointerItem{PK: pk, SK: sk, Entity: entityPointer, ClaimID: claimID})
	require.NoError(t, err)
	return item
}

func fields() models.DamageFields {
	return models.DamageFields{Part: "door", Severity: models.SeverityHigh, ImageURL: "https://img.example.com/d.jpg", Price: models.MustPrice("100.50"), Score: 7}
}

func canceled(codes ...string) error {
	reasons := make([]types.CancellationReason, 0, len(codes))
	for _, c := range codes {
		reasons = append(reasons, types.CancellationReason{Code: aws.String(c)})
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

func TestKeys(t *testing.T) {
	pk, sk := ClaimKey("C1")
	assert.Equal(t, "CLAIM#C1", pk)
	assert.Equal(t, "META", sk)

	pk, sk = DamageKey("C1", "D1")
	assert.Equal(t, "CLAIM#C1", pk)
	assert.Equal(t, "DAMAGE#D1", sk)

	pk, sk = PointerKey("D1")
	assert.Equal(t, "DAMAGE#D1", pk)
	assert.Equal(t, "META", sk)

	id, ok := DamageIDFromSK("DAMAGE#D1")
	assert.True(t, ok)
	assert.Equal(t, "D1", id)
	_, ok = DamageIDFromSK("META")
	assert.False(t, ok)
}

func TestGetClaim(t *testing.T) {
	r, m := newRepo()
	m.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return aws.ToBool(in.ConsistentRead) && in.Key["PK"].(*types.AttributeValueMemberS).Value == "CLAIM#C1"
	})).Return(&dynamodb.GetItemOutput{Item: claimAV(t, "C1", models.StatusInReview)}, nil)

	c, err := r.GetClaim(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "C1", c.ID)
	assert.Equal(t, models.StatusInReview, c.Status)
	assert.Nil(t, c.Description)
	m.AssertExpectations(t)
}

func TestGetClaimMissing(t *testing.T) {
	r, m := newRepo()
	m.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := r.GetClaim(context.Background(), "C1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateClaimConditionalPut(t *testing.T) {
	r, m := newRepo()
	desc := "hail on the roof"
	m.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		var it claimItem
		if err := attributevalue.UnmarshalMap(in.Item, &it); err != nil {
			return false
		}
		return it.Status == models.StatusPending && it.Entity == entityClaim &&
			it.Description != nil && *it.Description == desc &&
			aws.ToString(in.ConditionExpression) == "attribute_not_exists(PK) AND attribute_not_exists(SK)"
	})).Return(&dynamodb.PutItemOutput{}, nil)

	c, err := r.CreateClaim(context.Background(), models.NewClaim{Title: "Hail", Description: &desc})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, models.StatusPending, c.Status)
	m.AssertExpectations(t)
}

func TestSetClaimStatus(t *testing.T) {
	r, m := newRepo()
	m.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return in.ExpressionAttributeValues[":from"].(*types.AttributeValueMemberS).Value == "PENDING" &&
			in.ExpressionAttributeValues[":to"].(*types.AttributeValueMemberS).Value == "CANCELED"
	})).Return(&dynamodb.UpdateItemOutput{Attributes: claimAV(t, "C1", models.StatusCanceled)}, nil)

	c, err := r.SetClaimStatus(context.Background(), "C1", models.StatusPending, models.StatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, c.Status)
}

func TestSetClaimStatusConditionFailures(t *testing.T) {
	tests := []struct {
		name string
		item map[string]types.AttributeValue
		want error
	}{
		{"status moved", claimAV(t, "C1", models.StatusInReview), storage.ErrConflict},
		{"claim missing", nil, storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newRepo()
			m.On("UpdateItem", mock.Anything, mock.Anything).
				Return(nil, &types.ConditionalCheckFailedException{Item: tt.item})

			_, err := r.SetClaimStatus(context.Background(), "C1", models.StatusPending, models.StatusCanceled)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSetClaimStatusPassesThroughOtherErrors(t *testing.T) {
	r, m := newRepo()
	boom := errors.New("throttled")
	m.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, boom)

	_, err := r.SetClaimStatus(context.Background(), "C1", models.StatusPending, models.StatusCanceled)
	assert.ErrorIs(t, err, boom)
}

func TestGetDamagesForClaimPaginates(t *testing.T) {
	r, m := newRepo()
	d1, err := attributevalue.MarshalMap(newDamageItem(models.Damage{ID: "D1", ClaimID: "C1"}.WithFields(fields())))
	require.NoError(t, err)
	d2, err := attributevalue.MarshalMap(newDamageItem(models.Damage{ID: "D2", ClaimID: "C1"}.WithFields(fields())))
	require.NoError(t, err)
	lastKey := map[string]types.AttributeValue{"PK": str("CLAIM#C1"), "SK": str("DAMAGE#D1")}

	m.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool { return in.ExclusiveStartKey == nil })).
		Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{d1}, LastEvaluatedKey: lastKey}, nil).Once()
	m.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool { return in.ExclusiveStartKey != nil })).
		Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{d2}}, nil).Once()

	got, err := r.GetDamagesForClaim(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "D1", got[0].ID)
	assert.Equal(t, "D2", got[1].ID)
	assert.Equal(t, "100.50", got[0].Price.String())
	assert.Equal(t, models.Score(7), got[0].Score)
	m.AssertExpectations(t)
}

func TestHasDamageWithSeverity(t *testing.T) {
	r, m := newRepo()
	m.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.Select == types.SelectCount && in.ExpressionAttributeValues[":sev"].(*types.AttributeValueMemberS).Value == "HIGH"
	})).Return(&dynamodb.QueryOutput{Count: 1}, nil)

	has, err := r.HasDamageWithSeverity(context.Background(), "C1", models.SeverityHigh)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestCreateDamageTransaction(t *testing.T) {
	r, m := newRepo()
	m.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 3 {
			return false
		}
		check := in.TransactItems[0].ConditionCheck
		return check != nil &&
			aws.ToString(check.ConditionExpression) == "#status = :pending" &&
			in.TransactItems[1].Put != nil && in.TransactItems[2].Put != nil
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	d, err := r.CreateDamage(context.Background(), "C1", fields())
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "C1", d.ClaimID)
	assert.Equal(t, "100.50", d.Price.String())
	m.AssertExpectations(t)
}

func TestCreateDamageCanceled(t *testing.T) {
	notPending := &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
		{Code: aws.String("ConditionalCheckFailed"), Item: claimAV(t, "C1", models.StatusFinalized)},
		{Code: aws.String("None")},
		{Code: aws.String("None")},
	}}
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"claim not pending", notPending, storage.ErrConflict},
		{"claim missing", canceled("ConditionalCheckFailed", "None", "None"), storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, m := newRepo()
			m.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, tt.err)

			_, err := r.CreateDamage(context.Background(), "C1", fields())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdateDamageResolvesPointer(t *testing.T) {
	r, m := newRepo()
	m.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return in.Key["PK"].(*types.AttributeValueMemberS).Value == "DAMAGE#D1"
	})).Return(&dynamodb.GetItemOutput{Item: pointerAV(t, "D1", "C1")}, nil)
	m.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		u := in.TransactItems[1].Update
		return u != nil &&
			u.Key["PK"].(*types.AttributeValueMemberS).Value == "CLAIM#C1" &&
			u.Key["SK"].(*types.AttributeValueMemberS).Value == "DAMAGE#D1" &&
			u.ExpressionAttributeValues[":price"].(*types.AttributeValueMemberN).Value == "100.50"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	d, err := r.UpdateDamage(context.Background(), "D1", fields())
	require.NoError(t, err)
	assert.Equal(t, "C1", d.ClaimID)
	assert.Equal(t, "door", d.Part)
	m.AssertExpectations(t)
}

func TestDeleteDamageMissingPointer(t *testing.T) {
	r, m := newRepo()
	m.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	assert.ErrorIs(t, r.DeleteDamage(context.Background(), "D1"), storage.ErrNotFound)
	m.AssertNotCalled(t, "TransactWriteItems", mock.Anything, mock.Anything)
}

func TestDeleteDamageGoneMidway(t *testing.T) {
	r, m := newRepo()
	m.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: pointerAV(t, "D1", "C1")}, nil)
	m.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, canceled("None", "ConditionalCheckFailed", "None"))

	assert.ErrorIs(t, r.DeleteDamage(context.Background(), "D1"), storage.ErrNotFound)
}

func TestGetDamageWithClaimStatus(t *testing.T) {
	r, m := newRepo()
	m.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return in.Key["PK"].(*types.AttributeValueMemberS).Value == "DAMAGE#D1"
	})).Return(&dynamodb.GetItemOutput{Item: pointerAV(t, "D1", "C1")}, nil)
	m.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return in.Key["PK"].(*types.AttributeValueMemberS).Value == "CLAIM#C1"
	})).Return(&dynamodb.GetItemOutput{Item: claimAV(t, "C1", models.StatusInReview)}, nil)

	claimID, status, err := r.GetDamageWithClaimStatus(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, "C1", claimID)
	assert.Equal(t, models.StatusInReview, status)
}

func TestListClaimsSorted(t *testing.T) {
	r, m := newRepo()
	m.On("Scan", mock.Anything, mock.Anything).Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
		claimAV(t, "C2", models.StatusPending),
		claimAV(t, "C1", models.StatusPending),
	}}, nil)

	got, err := r.ListClaims(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C1", got[0].ID)
	assert.Equal(t, "C2", got[1].ID)
}

func TestEnsureTableExisting(t *testing.T) {
	r, m := newRepo()
	m.On("DescribeTable", mock.Anything, mock.Anything).Return(&dynamodb.DescribeTableOutput{}, nil)

	created, err := r.EnsureTable(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, created)
	m.AssertNotCalled(t, "CreateTable", mock.Anything, mock.Anything)
}

func TestEnsureTableCreates(t *testing.T) {
	r, m := newRepo()
	m.On("DescribeTable", mock.Anything, mock.Anything).Return(nil, &types.ResourceNotFoundException{})
	m.On("CreateTable", mock.Anything, mock.MatchedBy(func(in *dynamodb.CreateTableInput) bool {
		return aws.ToString(in.TableName) == "claims" && len(in.KeySchema) == 2
	})).Return(&dynamodb.CreateTableOutput{}, nil)

	created, err := r.EnsureTable(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, created)
}
