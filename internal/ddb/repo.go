// Package ddb implements the claim store on a single DynamoDB table.
package ddb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kylejryan/claims-manager/internal/models"
	"github.com/kylejryan/claims-manager/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"
)

// API is the subset of *dynamodb.Client the repo uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Repo wraps a DynamoDB client and table name for claim operations.
// Gating reads are strongly consistent; gated writes carry condition expressions.
type Repo struct {
	DB    API
	Table string
}

var _ storage.Store = (*Repo)(nil)

// awsStr is a helper to get a pointer to a string literal.
func awsStr(s string) *string { return &s }

func keyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func str(s string) types.AttributeValue { return &types.AttributeValueMemberS{Value: s} }

var statusName = map[string]string{"#status": "status"}

// GetClaim returns the claim header; Damages is left nil.
func (r *Repo) GetClaim(ctx context.Context, id string) (models.Claim, error) {
	out, err := r.DB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &r.Table,
		Key:            keyOf(ClaimKey(id)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return models.Claim{}, err
	}
	if len(out.Item) == 0 {
		return models.Claim{}, storage.ErrNotFound
	}
	var it claimItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return models.Claim{}, fmt.Errorf("unmarshal claim %s: %w", id, err)
	}
	return it.claim(), nil
}

// ListClaims scans every claim item and orders the result by id.
func (r *Repo) ListClaims(ctx context.Context) ([]models.ClaimSummary, error) {
	var items []claimItem
	if err := r.scanEntity(ctx, entityClaim, &items); err != nil {
		return nil, err
	}
	out := make([]models.ClaimSummary, 0, len(items))
	for _, it := range items {
		out = append(out, it.claim().Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateClaim inserts a new PENDING claim, ensuring no duplicate exists.
func (r *Repo) CreateClaim(ctx context.Context, nc models.NewClaim) (models.Claim, error) {
	id := ulid.Make().String()
	pk, sk := ClaimKey(id)
	it := claimItem{
		PK: pk, SK: sk, Entity: entityClaim,
		ClaimID: id, Title: nc.Title, Description: nc.Description,
		Status: models.StatusPending, CreatedAt: NowISO(),
	}
	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return models.Claim{}, err
	}
	_, err = r.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.Table,
		Item:                item,
		ConditionExpression: awsStr("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return models.Claim{}, err
	}
	return it.claim(), nil
}

// SetClaimStatus updates the status only if it still equals from.
func (r *Repo) SetClaimStatus(ctx context.Context, id string, from, to models.ClaimStatus) (models.Claim, error) {
	out, err := r.DB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           &r.Table,
		Key:                                 keyOf(ClaimKey(id)),
		UpdateExpression:                    awsStr("SET #status = :to"),
		ConditionExpression:                 awsStr("attribute_exists(PK) AND #status = :from"),
		ExpressionAttributeNames:            statusName,
		ExpressionAttributeValues:           map[string]types.AttributeValue{":to": str(string(to)), ":from": str(string(from))},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return models.Claim{}, storage.ErrNotFound
			}
			return models.Claim{}, storage.ErrConflict
		}
		return models.Claim{}, err
	}
	var it claimItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return models.Claim{}, fmt.Errorf("unmarshal claim %s: %w", id, err)
	}
	return it.claim(), nil
}

// GetDamagesForClaim queries the claim partition; sort keys are ULIDs, so the
// result is in insertion order.
func (r *Repo) GetDamagesForClaim(ctx context.Context, claimID string) ([]models.Damage, error) {
	pk, _ := ClaimKey(claimID)
	p := dynamodb.NewQueryPaginator(r.DB, &dynamodb.QueryInput{
		TableName:              &r.Table,
		KeyConditionExpression: awsStr("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": str(pk), ":prefix": str(damagePrefix),
		},
		ConsistentRead: aws.Bool(true),
	})
	out := make([]models.Damage, 0)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var items []damageItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal damages of %s: %w", claimID, err)
		}
		for _, it := range items {
			out = append(out, it.damage())
		}
	}
	return out, nil
}

// HasDamageWithSeverity counts matching damages page by page and stops at the first hit.
func (r *Repo) HasDamageWithSeverity(ctx context.Context, claimID string, sv models.Severity) (bool, error) {
	pk, _ := ClaimKey(claimID)
	p := dynamodb.NewQueryPaginator(r.DB, &dynamodb.QueryInput{
		TableName:                &r.Table,
		KeyConditionExpression:   awsStr("PK = :pk AND begins_with(SK, :prefix)"),
		FilterExpression:         awsStr("#severity = :sev"),
		ExpressionAttributeNames: map[string]string{"#severity": "severity"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": str(pk), ":prefix": str(damagePrefix), ":sev": str(string(sv)),
		},
		Select:         types.SelectCount,
		ConsistentRead: aws.Bool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return false, err
		}
		if page.Count > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ListDamages scans every damage item and orders the result by id.
func (r *Repo) ListDamages(ctx context.Context) ([]models.Damage, error) {
	var items []damageItem
	if err := r.scanEntity(ctx, entityDamage, &items); err != nil {
		return nil, err
	}
	out := make([]models.Damage, 0, len(items))
	for _, it := range items {
		out = append(out, it.damage())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateDamage writes the damage and its pointer in one transaction that also
// checks the claim is PENDING.
func (r *Repo) CreateDamage(ctx context.Context, claimID string, f models.DamageFields) (models.Damage, error) {
	d := models.Damage{ID: ulid.Make().String(), ClaimID: claimID}.WithFields(f)
	item, err := attributevalue.MarshalMap(newDamageItem(d))
	if err != nil {
		return models.Damage{}, err
	}
	ppk, psk := PointerKey(d.ID)
	ptr, err := attributevalue.MarshalMap(pointerItem{PK: ppk, SK: psk, Entity: entityPointer, ClaimID: claimID})
	if err != nil {
		return models.Damage{}, err
	}

	_, err = r.DB.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			r.pendingCheck(claimID),
			{Put: &types.Put{TableName: &r.Table, Item: item, ConditionExpression: awsStr("attribute_not_exists(PK)")}},
			{Put: &types.Put{TableName: &r.Table, Item: ptr, ConditionExpression: awsStr("attribute_not_exists(PK)")}},
		},
	})
	if err != nil {
		return models.Damage{}, gatedWriteErr(err)
	}
	return d, nil
}

// UpdateDamage replaces the damage fields while the claim is PENDING.
func (r *Repo) UpdateDamage(ctx context.Context, id string, f models.DamageFields) (models.Damage, error) {
	claimID, err := r.damageClaim(ctx, id)
	if err != nil {
		return models.Damage{}, err
	}
	d := models.Damage{ID: id, ClaimID: claimID}.WithFields(f)
	price, err := attributevalue.Marshal(d.Price)
	if err != nil {
		return models.Damage{}, err
	}

	_, err = r.DB.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			r.pendingCheck(claimID),
			{Update: &types.Update{
				TableName:           &r.Table,
				Key:                 keyOf(DamageKey(claimID, id)),
				UpdateExpression:    awsStr("SET #part = :part, #severity = :sev, #url = :url, #price = :price, #score = :score"),
				ConditionExpression: awsStr("attribute_exists(PK)"),
				ExpressionAttributeNames: map[string]string{
					"#part": "part", "#severity": "severity", "#url": "image_url", "#price": "price", "#score": "score",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":part":  str(d.Part),
					":sev":   str(string(d.Severity)),
					":url":   str(d.ImageURL),
					":price": price,
					":score": &types.AttributeValueMemberN{Value: fmt.Sprint(int(d.Score))},
				},
			}},
		},
	})
	if err != nil {
		return models.Damage{}, gatedWriteErr(err)
	}
	return d, nil
}

// DeleteDamage removes the damage and its pointer while the claim is PENDING.
func (r *Repo) DeleteDamage(ctx context.Context, id string) error {
	claimID, err := r.damageClaim(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.DB.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			r.pendingCheck(claimID),
			{Delete: &types.Delete{TableName: &r.Table, Key: keyOf(DamageKey(claimID, id)), ConditionExpression: awsStr("attribute_exists(PK)")}},
			{Delete: &types.Delete{TableName: &r.Table, Key: keyOf(PointerKey(id))}},
		},
	})
	if err != nil {
		return gatedWriteErr(err)
	}
	return nil
}

// GetDamageWithClaimStatus resolves the damage pointer and reads the claim status.
func (r *Repo) GetDamageWithClaimStatus(ctx context.Context, id string) (string, models.ClaimStatus, error) {
	claimID, err := r.damageClaim(ctx, id)
	if err != nil {
		return "", "", err
	}
	c, err := r.GetClaim(ctx, claimID)
	if err != nil {
		return "", "", err
	}
	return claimID, c.Status, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (r *Repo) Close() error { return nil }

func (r *Repo) damageClaim(ctx context.Context, damageID string) (string, error) {
	out, err := r.DB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &r.Table,
		Key:            keyOf(PointerKey(damageID)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if len(out.Item) == 0 {
		return "", storage.ErrNotFound
	}
	var p pointerItem
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return "", fmt.Errorf("unmarshal damage pointer %s: %w", damageID, err)
	}
	return p.ClaimID, nil
}

func (r *Repo) pendingCheck(claimID string) types.TransactWriteItem {
	return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
		TableName:                           &r.Table,
		Key:                                 keyOf(ClaimKey(claimID)),
		ConditionExpression:                 awsStr("#status = :pending"),
		ExpressionAttributeNames:            statusName,
		ExpressionAttributeValues:           map[string]types.AttributeValue{":pending": str(string(models.StatusPending))},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}
}

// gatedWriteErr maps a cancelled transaction whose first item is the claim
// status check. A failed check with no old item means the claim is gone; any
// other failed condition means the damage itself is gone.
func gatedWriteErr(err error) error {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return err
	}
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
			continue
		}
		if i == 0 && len(reason.Item) > 0 {
			return storage.ErrConflict
		}
		return storage.ErrNotFound
	}
	return err
}

func (r *Repo) scanEntity(ctx context.Context, entity string, out any) error {
	p := dynamodb.NewScanPaginator(r.DB, &dynamodb.ScanInput{
		TableName:                 &r.Table,
		FilterExpression:          awsStr("#entity = :e"),
		ExpressionAttributeNames:  map[string]string{"#entity": "entity"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":e": str(entity)},
		ConsistentRead:            aws.Bool(true),
	})
	var all []map[string]types.AttributeValue
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		all = append(all, page.Items...)
	}
	if err := attributevalue.UnmarshalListOfMaps(all, out); err != nil {
		return fmt.Errorf("unmarshal %s items: %w", entity, err)
	}
	return nil
}
