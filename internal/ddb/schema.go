package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// EnsureTable creates the claims table (PK/SK strings, on-demand billing) if it
// does not exist yet and waits until it is active.
func (r *Repo) EnsureTable(ctx context.Context, wait time.Duration) (created bool, err error) {
	_, err = r.DB.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &r.Table})
	if err == nil {
		return false, nil
	}
	var nf *types.ResourceNotFoundException
	if !errors.As(err, &nf) {
		return false, fmt.Errorf("describe table %s: %w", r.Table, err)
	}

	_, err = r.DB.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &r.Table,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: awsStr("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: awsStr("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: awsStr("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: awsStr("SK"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return false, fmt.Errorf("create table %s: %w", r.Table, err)
	}

	if wait > 0 {
		w := dynamodb.NewTableExistsWaiter(r.DB)
		if err := w.Wait(ctx, &dynamodb.DescribeTableInput{TableName: &r.Table}, wait); err != nil {
			return true, fmt.Errorf("wait for table %s: %w", r.Table, err)
		}
	}
	return true, nil
}
