package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cims-otp/internal/domain"
)

// recordPurgeGrace keeps a record around after expiry so a late verify still
// gets "expired" rather than "not found"; the TTL sweeper removes it afterwards.
const recordPurgeGrace = time.Hour

// otpItem is the stored shape of an OTPRecord. purge_at is the table's TTL attribute.
type otpItem struct {
	domain.OTPRecord
	PurgeAt int64 `dynamodbav:"purge_at"`
}

// OTPRecordRepo stores one OTP record per phone number.
// PK: phone
type OTPRecordRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRecordRepo(client *dynamodb.Client, tableName string) *OTPRecordRepo {
	return &OTPRecordRepo{client: client, tableName: tableName}
}

// Upsert replaces whatever record the phone had.
func (r *OTPRecordRepo) Upsert(ctx context.Context, rec *domain.OTPRecord) error {
	item, err := attributevalue.MarshalMap(otpItem{
		OTPRecord: *rec,
		PurgeAt:   rec.ExpiresAt.Add(recordPurgeGrace).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal otp record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *OTPRecordRepo) Find(ctx context.Context, phone string) (*domain.OTPRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldPhone, phone),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp record not found: %w", domain.ErrNotFound)
	}
	var item otpItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal otp record: %w", err)
	}
	return &item.OTPRecord, nil
}

// Update applies patch only if the stored record still matches current's issuance and version.
func (r *OTPRecordRepo) Update(ctx context.Context, current *domain.OTPRecord, patch domain.RecordPatch) error {
	updates := patchFields(patch)
	if len(updates) == 0 {
		return fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}
	updates[fieldVersion] = current.Version + 1

	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	cond, err := ue.withCondition(map[string]interface{}{
		fieldIssuanceID: current.IssuanceID,
		fieldVersion:    current.Version,
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldPhone, current.Phone),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return conditionFailed(err)
}

// Delete removes the record if it still belongs to current's issuance. Deleting a missing
// record succeeds.
func (r *OTPRecordRepo) Delete(ctx context.Context, current *domain.OTPRecord) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldPhone, current.Phone),
		ConditionExpression: aws.String("attribute_not_exists(#p) OR #iid = :iid"),
		ExpressionAttributeNames: map[string]string{
			"#p":   fieldPhone,
			"#iid": fieldIssuanceID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":iid": &types.AttributeValueMemberS{Value: current.IssuanceID},
		},
	})
	return conditionFailed(err)
}

// patchFields converts the set fields of p into attribute updates.
func patchFields(p domain.RecordPatch) map[string]interface{} {
	updates := make(map[string]interface{})
	if p.Attempts != nil {
		updates[fieldAttempts] = *p.Attempts
	}
	if p.Verified != nil {
		updates[fieldVerified] = *p.Verified
	}
	if p.VerifiedAt != nil {
		updates[fieldVerifiedAt] = p.VerifiedAt.UTC()
	}
	return updates
}
