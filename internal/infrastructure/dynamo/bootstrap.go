package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cims-otp/internal/config"
)

// tableWaitTimeout bounds how long Bootstrap waits for a new table to become ACTIVE.
const tableWaitTimeout = 30 * time.Second

// Bootstrap creates the OTP tables if they don't already exist and turns on TTL eviction.
// Tables that already exist are left as they are.
func Bootstrap(ctx context.Context, client *dynamodb.Client, tables config.DynamoTables) {
	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.OTPRecords),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldPhone), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldPhone), KeyType: types.KeyTypeHash},
		},
	})
	enableTTL(ctx, client, tables.OTPRecords, fieldPurgeAt)

	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.OTPIssuances),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldPhone), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldIssuedAt), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldPhone), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(fieldIssuedAt), KeyType: types.KeyTypeRange},
		},
	})
	enableTTL(ctx, client, tables.OTPIssuances, fieldPurgeAt)
}

// Pinger reports whether the OTP tables are reachable.
type Pinger struct {
	client *dynamodb.Client
	tables []string
}

func NewPinger(client *dynamodb.Client, tables config.DynamoTables) *Pinger {
	return &Pinger{client: client, tables: []string{tables.OTPRecords, tables.OTPIssuances}}
}

func (p *Pinger) Ping(ctx context.Context) error {
	for _, t := range p.tables {
		if _, err := p.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t)}); err != nil {
			return fmt.Errorf("describe table %s: %w", t, err)
		}
	}
	return nil
}

func createTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if !errors.As(err, &riue) {
			slog.Warn("could not create table", "table", *input.TableName, "error", err)
		}
		return
	}
	slog.Info("created table", "table", *input.TableName)
	// TTL can only be enabled once the table is ACTIVE.
	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: input.TableName}, tableWaitTimeout); err != nil {
		slog.Warn("table not active yet", "table", *input.TableName, "error", err)
	}
}

func enableTTL(ctx context.Context, client *dynamodb.Client, tableName, ttlAttr string) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(ttlAttr),
		},
	})
	if err != nil {
		slog.Warn("could not enable TTL", "table", tableName, "error", err)
	}
}
