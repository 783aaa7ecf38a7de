package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/service/dispatch"
)

var _ dispatch.OutcomePublisher = (*Publisher)(nil)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func event() domain.OutcomeEvent {
	return domain.OutcomeEvent{
		DispatchID: "d-1",
		TemplateID: "discount-offer",
		Email:      "A@x.com",
		Status:     domain.OutcomeFailed,
		SentAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublishOutcome(t *testing.T) {
	api := &fakeSQS{}
	p := newPublisher(api, "https://sqs.us-west-2.amazonaws.com/123/promo-outcomes")

	require.NoError(t, p.PublishOutcome(context.Background(), event()))
	require.Len(t, api.inputs, 1)
	in := api.inputs[0]

	var got domain.OutcomeEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &got))
	assert.Equal(t, event(), got)
	assert.Equal(t, "failed", aws.ToString(in.MessageAttributes["status"].StringValue))
	assert.Nil(t, in.MessageGroupId)
}

func TestPublishOutcomeFIFO(t *testing.T) {
	api := &fakeSQS{}
	p := newPublisher(api, "https://sqs.us-west-2.amazonaws.com/123/promo-outcomes.fifo")

	require.NoError(t, p.PublishOutcome(context.Background(), event()))
	in := api.inputs[0]
	assert.Equal(t, "d-1", aws.ToString(in.MessageGroupId))
	assert.Equal(t, "d-1:a@x.com", aws.ToString(in.MessageDeduplicationId))
}

func TestPublishOutcomeError(t *testing.T) {
	p := newPublisher(&fakeSQS{err: errors.New("throttled")}, "q")
	err := p.PublishOutcome(context.Background(), event())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
