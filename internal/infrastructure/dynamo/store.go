package dynamo

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cims-otp/internal/config"
)

// Store bundles the record table, the issuance table and the readiness check.
type Store struct {
	*OTPRecordRepo
	*OTPIssuanceRepo
	*Pinger
}

func NewStore(client *dynamodb.Client, tables config.DynamoTables) *Store {
	return &Store{
		OTPRecordRepo:   NewOTPRecordRepo(client, tables.OTPRecords),
		OTPIssuanceRepo: NewOTPIssuanceRepo(client, tables.OTPIssuances),
		Pinger:          NewPinger(client, tables),
	}
}
