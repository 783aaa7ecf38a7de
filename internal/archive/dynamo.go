package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/promo-dispatch/internal/domain"
)

const summarySortKey = "SUMMARY"

type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// dispatchItem is one archived dispatch. Data holds the summary JSON,
// rendered content included.
type dispatchItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	TemplateID string `dynamodbav:"TemplateID"`
	Data       string `dynamodbav:"Data"`
	Timestamp  string `dynamodbav:"Timestamp"`
	TTL        int64  `dynamodbav:"TTL,omitempty"`
}

// Dynamo archives summaries in a single-table DynamoDB layout keyed by
// DISPATCH#<id>.
type Dynamo struct {
	client dynamoAPI
	table  string
	ttl    time.Duration
	now    func() time.Time
}

// NewDynamo wraps an existing DynamoDB client. ttl <= 0 disables expiry.
func NewDynamo(client *dynamodb.Client, table string, ttl time.Duration) *Dynamo {
	return newDynamo(client, table, ttl)
}

func newDynamo(client dynamoAPI, table string, ttl time.Duration) *Dynamo {
	return &Dynamo{client: client, table: table, ttl: ttl, now: time.Now}
}

// NewDynamoFromConfig loads the default AWS config for region.
func NewDynamoFromConfig(ctx context.Context, region, table string, ttl time.Duration) (*Dynamo, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewDynamo(dynamodb.NewFromConfig(cfg), table, ttl), nil
}

func dispatchKey(id string) string { return "DISPATCH#" + id }

func (a *Dynamo) Save(ctx context.Context, s *domain.CampaignSummary) error {
	if err := checkID(s.DispatchID); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	now := a.now().UTC()
	item := dispatchItem{
		PK:         dispatchKey(s.DispatchID),
		SK:         summarySortKey,
		TemplateID: s.TemplateID,
		Data:       string(data),
		Timestamp:  now.Format(time.RFC3339),
	}
	if a.ttl > 0 {
		item.TTL = now.Add(a.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}
	if _, err := a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("putting item to DynamoDB: %w", err)
	}
	return nil
}

func (a *Dynamo) Get(ctx context.Context, dispatchID string) (*domain.CampaignSummary, error) {
	if err := checkID(dispatchID); err != nil {
		return nil, err
	}
	out, err := a.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(a.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: dispatchKey(dispatchID)},
			"SK": &types.AttributeValueMemberS{Value: summarySortKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting item from DynamoDB: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var item dispatchItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling item: %w", err)
	}
	var s domain.CampaignSummary
	if err := json.Unmarshal([]byte(item.Data), &s); err != nil {
		return nil, fmt.Errorf("unmarshaling summary: %w", err)
	}
	return &s, nil
}
