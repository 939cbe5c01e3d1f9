package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cims-otp/internal/domain"
)

// issuanceItem is the stored shape of an Issuance.
// PK: phone, SK: issued_at (Unix nanoseconds). purge_at is the TTL attribute.
type issuanceItem struct {
	domain.Issuance
	IssuedAtNano int64 `dynamodbav:"issued_at"`
	PurgeAtUnix  int64 `dynamodbav:"purge_at"`
}

// OTPIssuanceRepo is the per-phone issuance log behind the sliding-window rate limit.
type OTPIssuanceRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPIssuanceRepo(client *dynamodb.Client, tableName string) *OTPIssuanceRepo {
	return &OTPIssuanceRepo{client: client, tableName: tableName}
}

func (r *OTPIssuanceRepo) RecordIssuance(ctx context.Context, iss *domain.Issuance) error {
	item, err := attributevalue.MarshalMap(issuanceItem{
		Issuance:     *iss,
		IssuedAtNano: iss.IssuedAt.UnixNano(),
		PurgeAtUnix:  iss.PurgeAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal issuance: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// CountIssuedSince counts issuances for phone at or after since. Rows the TTL sweeper has
// not reached yet are excluded by the key condition, not by purge_at.
func (r *OTPIssuanceRepo) CountIssuedSince(ctx context.Context, phone string, since time.Time) (int, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#p = :p AND #t >= :since"),
		ExpressionAttributeNames: map[string]string{
			"#p": fieldPhone,
			"#t": fieldIssuedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p":     &types.AttributeValueMemberS{Value: phone},
			":since": &types.AttributeValueMemberN{Value: strconv.FormatInt(since.UnixNano(), 10)},
		},
		Select:         types.SelectCount,
		ConsistentRead: aws.Bool(true),
	})
	total := 0
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("count issuances: %w", err)
		}
		total += int(out.Count)
	}
	return total, nil
}
