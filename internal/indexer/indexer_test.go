package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/kylejryan/claims-manager/internal/lifecycle"
	"github.com/kylejryan/claims-manager/internal/memstore"
	"github.com/kylejryan/claims-manager/internal/models"
	"github.com/kylejryan/claims-manager/internal/s3io"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjects struct {
	mock.Mock
}

func (m *mockObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(aws.ToString(in.Key))
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(aws.ToString(in.Key))
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func setup(t *testing.T) (*Indexer, *lifecycle.Engine, *mockObjects) {
	t.Helper()
	e := lifecycle.NewEngine(memstore.New(), nil)
	o := &mockObjects{}
	return New(e, o, nil), e, o
}

func head(contentType, claimID string) *s3.HeadObjectOutput {
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(1024),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{"claim_id": claimID},
	}
}

func TestStoredForPendingClaim(t *testing.T) {
	ix, e, o := setup(t)
	c, err := e.CreateClaim(context.Background(), "Hail", nil)
	require.NoError(t, err)
	key := s3io.BuildImageKey(c.ID, "IMG1", ".jpg")
	o.On("HeadObject", key).Return(head("image/jpeg", c.ID), nil)

	got, err := ix.Process(context.Background(), "photos", key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStored, got)
	o.AssertNotCalled(t, "DeleteObject", mock.Anything)
}

func TestOrphansRemoved(t *testing.T) {
	ctx := context.Background()
	ix, e, o := setup(t)
	c, err := e.CreateClaim(ctx, "Hail", nil)
	require.NoError(t, err)
	_, err = e.AttemptTransition(ctx, c.ID, models.StatusCanceled)
	require.NoError(t, err)

	canceledKey := s3io.BuildImageKey(c.ID, "IMG1", ".png")
	missingKey := s3io.BuildImageKey("GONE", "IMG2", ".png")
	o.On("HeadObject", canceledKey).Return(head("image/png", c.ID), nil)
	o.On("HeadObject", missingKey).Return(head("image/png", ""), nil)
	o.On("DeleteObject", canceledKey).Return(&s3.DeleteObjectOutput{}, nil)
	o.On("DeleteObject", missingKey).Return(&s3.DeleteObjectOutput{}, nil)

	for _, key := range []string{canceledKey, missingKey} {
		got, err := ix.Process(ctx, "photos", key)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRemoved, got, key)
	}
	o.AssertExpectations(t)
}

func TestRejectsForgedUploads(t *testing.T) {
	ctx := context.Background()
	ix, e, o := setup(t)
	c, err := e.CreateClaim(ctx, "Hail", nil)
	require.NoError(t, err)

	wrongMeta := s3io.BuildImageKey(c.ID, "IMG1", ".png")
	notImage := s3io.BuildImageKey(c.ID, "IMG2", ".png")
	o.On("HeadObject", wrongMeta).Return(head("image/png", "OTHER"), nil)
	o.On("HeadObject", notImage).Return(head("text/html", c.ID), nil)
	o.On("DeleteObject", mock.Anything).Return(&s3.DeleteObjectOutput{}, nil)

	for _, key := range []string{wrongMeta, notImage} {
		got, err := ix.Process(ctx, "photos", key)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRejected, got, key)
	}
	o.AssertNumberOfCalls(t, "DeleteObject", 2)
}

func TestIgnoresForeignKeys(t *testing.T) {
	ix, _, o := setup(t)
	got, err := ix.Process(context.Background(), "photos", "user%2Fu1%2Fc1.txt")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, got)
	o.AssertNotCalled(t, "HeadObject", mock.Anything)
}

func TestHandleJoinsFailures(t *testing.T) {
	ix, _, o := setup(t)
	o.On("HeadObject", mock.Anything).Return(nil, errors.New("access denied"))

	var ev events.S3Event
	for _, key := range []string{"claims/C1/damages/A.jpg", "claims/C2/damages/B.jpg"} {
		var rec events.S3EventRecord
		rec.S3.Bucket.Name = "photos"
		rec.S3.Object.Key = key
		ev.Records = append(ev.Records, rec)
	}

	err := ix.Handle(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claims/C1/damages/A.jpg")
	assert.Contains(t, err.Error(), "claims/C2/damages/B.jpg")
}
