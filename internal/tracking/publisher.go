// Package tracking publishes per-recipient dispatch outcomes to an SQS queue
// so downstream consumers can follow deliveries without polling the
// subscriber store.
package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/promo-dispatch/internal/domain"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher implements dispatch.OutcomePublisher on SQS.
type Publisher struct {
	client   sqsAPI
	queueURL string
	fifo     bool
	timeout  time.Duration
}

// NewPublisher wraps an SQS client. FIFO queues get one message group per
// dispatch so a dispatch's events stay in send order.
func NewPublisher(client *sqs.Client, queueURL string) *Publisher {
	return newPublisher(client, queueURL)
}

func newPublisher(client sqsAPI, queueURL string) *Publisher {
	return &Publisher{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
		timeout:  5 * time.Second,
	}
}

// NewSQSPublisher loads the default AWS config for region.
func NewSQSPublisher(ctx context.Context, region, queueURL string) (*Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewPublisher(sqs.NewFromConfig(cfg), queueURL), nil
}

// PublishOutcome sends ev as a JSON message.
func (p *Publisher) PublishOutcome(ctx context.Context, ev domain.OutcomeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"dispatch_id": {DataType: aws.String("String"), StringValue: aws.String(ev.DispatchID)},
			"status":      {DataType: aws.String("String"), StringValue: aws.String(string(ev.Status))},
		},
	}
	if p.fifo {
		in.MessageGroupId = aws.String(ev.DispatchID)
		in.MessageDeduplicationId = aws.String(ev.DispatchID + ":" + strings.ToLower(ev.Email))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := p.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}
