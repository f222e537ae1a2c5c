// Package indexer reacts to damage photos landing in S3. Photos whose claim is
// gone or no longer PENDING are removed; the rest are logged as stored.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/kylejryan/claims-manager/internal/lifecycle"
	"github.com/kylejryan/claims-manager/internal/logging"
	"github.com/kylejryan/claims-manager/internal/models"
	"github.com/kylejryan/claims-manager/internal/s3io"

	"github.com/aws/aws-lambda-go/events"
)

// Indexer holds the collaborators of the S3 event handler.
type Indexer struct {
	engine  *lifecycle.Engine
	objects s3io.ObjectAPI
	log     *slog.Logger
}

// New creates an indexer. A nil logger discards output.
func New(engine *lifecycle.Engine, objects s3io.ObjectAPI, log *slog.Logger) *Indexer {
	if log == nil {
		log = logging.Discard()
	}
	return &Indexer{engine: engine, objects: objects, log: log}
}

// Outcome is what happened to one uploaded object.
type Outcome string

// Possible values for Outcome
const (
	OutcomeStored   Outcome = "stored"
	OutcomeRemoved  Outcome = "removed"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeRejected Outcome = "rejected"
)

// Handle processes every record. Records that fail on a transient error are
// returned joined so the invocation is retried; the others are only logged.
func (ix *Indexer) Handle(ctx context.Context, ev events.S3Event) error {
	var errs []error
	for _, rec := range ev.Records {
		if _, err := ix.Process(ctx, rec.S3.Bucket.Name, rec.S3.Object.Key); err != nil {
			ix.log.Error("damage.image.failed", "key", rec.S3.Object.Key, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Process handles a single uploaded object. keyEsc is URL-encoded, as in S3 events.
func (ix *Indexer) Process(ctx context.Context, bucket, keyEsc string) (Outcome, error) {
	key, err := url.QueryUnescape(keyEsc)
	if err != nil {
		key = keyEsc
	}
	claimID, imageID, ok := s3io.ParseImageKey(key)
	if !ok {
		ix.log.Warn("damage.image.unexpected_key", "bucket", bucket, "key", key)
		return OutcomeIgnored, nil
	}

	meta, err := s3io.Head(ctx, ix.objects, bucket, key)
	if err != nil {
		return "", fmt.Errorf("head %s: %w", key, err)
	}

	// Prefer the key; metadata that disagrees is treated as a forged upload.
	if mc := strings.TrimSpace(meta.Meta["claim_id"]); mc != "" && mc != claimID {
		ix.log.Warn("damage.image.metadata_mismatch", "key", key, "claim_id", claimID, "meta_claim_id", mc)
		return ix.remove(ctx, bucket, key, OutcomeRejected)
	}
	if !strings.HasPrefix(meta.ContentType, "image/") {
		ix.log.Warn("damage.image.bad_content_type", "key", key, "content_type", meta.ContentType)
		return ix.remove(ctx, bucket, key, OutcomeRejected)
	}

	if err := ix.engine.EnsureEditable(ctx, claimID); err != nil {
		switch models.KindOf(err) {
		case models.KindNotFound, models.KindClaimNotEditable:
			ix.log.Info("damage.image.orphaned", "key", key, "claim_id", claimID, "kind", models.KindOf(err))
			return ix.remove(ctx, bucket, key, OutcomeRemoved)
		}
		return "", err
	}

	ix.log.Info("damage.image.stored",
		"claim_id", claimID, "image_id", imageID, "size", meta.Size, "etag", meta.ETag, "content_type", meta.ContentType)
	return OutcomeStored, nil
}

func (ix *Indexer) remove(ctx context.Context, bucket, key string, outcome Outcome) (Outcome, error) {
	if err := s3io.Delete(ctx, ix.objects, bucket, key); err != nil {
		return "", fmt.Errorf("delete %s: %w", key, err)
	}
	return outcome, nil
}
