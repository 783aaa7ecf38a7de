package dispatch_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/service/dispatch"
	"github.com/ignite/promo-dispatch/internal/service/sending"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchIsolatesFailures(t *testing.T) {
	sender := newCaptureSender()
	sender.failOn["b@y.com"] = "mailbox unavailable"

	var mu sync.Mutex
	var tracked []domain.SendOutcome
	d := dispatch.NewDispatcher(sender, dispatch.DispatcherConfig{})

	outcomes := d.Dispatch(context.Background(), dispatch.Batch{
		Recipients: []string{"a@x.com", "b@y.com", "c@z.com"},
		Subject:    "Hi",
		HTML:       "<p>hi</p>",
		OnOutcome: func(_ context.Context, o domain.SendOutcome) {
			mu.Lock()
			tracked = append(tracked, o)
			mu.Unlock()
		},
	})

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.Equal(t, "mailbox unavailable", outcomes[1].ErrorMessage)
	assert.Equal(t, domain.OutcomeFailed, outcomes[1].Status)
	assert.True(t, outcomes[2].Success)
	assert.Equal(t, "msg-c@z.com", outcomes[2].MessageID)

	require.Len(t, tracked, 3)
	assert.Equal(t, outcomes, tracked)
	assert.Equal(t, []string{"a@x.com", "b@y.com", "c@z.com"}, sender.addresses())
}

func TestDispatchStampsEnvelope(t *testing.T) {
	sender := newCaptureSender()
	d := dispatch.NewDispatcher(sender, dispatch.DispatcherConfig{
		Envelope: dispatch.Envelope{FromName: "Acme", FromEmail: "news@acme.test", ReplyTo: "help@acme.test"},
	})
	d.Dispatch(context.Background(), dispatch.Batch{
		DispatchID: "d-1", TemplateID: "t-1",
		Recipients: []string{"a@x.com"}, Subject: "S", HTML: "<p>x</p>",
	})

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Acme", msg.FromName)
	assert.Equal(t, "news@acme.test", msg.FromEmail)
	assert.Equal(t, "help@acme.test", msg.ReplyTo)
	assert.Equal(t, "d-1", msg.DispatchID)
	assert.Equal(t, "t-1", msg.TemplateID)
	assert.Equal(t, "S", msg.Subject)
	assert.NotEmpty(t, msg.ID)
}

func TestDispatchTrackingRunsBeforeNextSend(t *testing.T) {
	sender := newCaptureSender()
	var events []string
	sender.hook = func(msg *domain.EmailMessage) { events = append(events, "send "+msg.Email) }

	d := dispatch.NewDispatcher(sender, dispatch.DispatcherConfig{})
	d.Dispatch(context.Background(), dispatch.Batch{
		Recipients: []string{"a@x.com", "b@y.com"},
		OnOutcome: func(_ context.Context, o domain.SendOutcome) {
			events = append(events, "track "+o.Address)
		},
	})

	assert.Equal(t, []string{"send a@x.com", "track a@x.com", "send b@y.com", "track b@y.com"}, events)
}

func TestDispatchCancellationMarksRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sender := newCaptureSender()
	sender.hook = func(msg *domain.EmailMessage) {
		if msg.Email == "b@y.com" {
			cancel()
		}
	}
	var tracked int
	d := dispatch.NewDispatcher(sender, dispatch.DispatcherConfig{})

	outcomes := d.Dispatch(ctx, dispatch.Batch{
		Recipients: []string{"a@x.com", "b@y.com", "c@z.com", "d@w.com"},
		OnOutcome:  func(context.Context, domain.SendOutcome) { tracked++ },
	})

	require.Len(t, outcomes, 4)
	assert.Equal(t, domain.OutcomeSent, outcomes[0].Status)
	assert.Equal(t, domain.OutcomeSent, outcomes[1].Status)
	assert.Equal(t, domain.OutcomeNotAttempted, outcomes[2].Status)
	assert.Equal(t, domain.OutcomeNotAttempted, outcomes[3].Status)
	assert.Equal(t, "c@z.com", outcomes[2].Address)
	assert.Equal(t, 2, tracked)
	assert.Equal(t, []string{"a@x.com", "b@y.com"}, sender.addresses())
}

func TestDispatchTimeoutIsFailure(t *testing.T) {
	slow := sending.SenderFunc(func(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
		if msg.Email == "slow@x.com" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &domain.SendResult{Success: true}, nil
	})
	d := dispatch.NewDispatcher(slow, dispatch.DispatcherConfig{Timeout: 10 * time.Millisecond})

	outcomes := d.Dispatch(context.Background(), dispatch.Batch{Recipients: []string{"slow@x.com", "fast@x.com"}})
	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].ErrorMessage, "timed out")
	assert.True(t, outcomes[1].Success)
}

func TestDispatchUnsuccessfulResultAndPanic(t *testing.T) {
	s := sending.SenderFunc(func(_ context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
		switch msg.Email {
		case "rejected@x.com":
			return &domain.SendResult{Success: false, Error: "suppressed"}, nil
		case "boom@x.com":
			panic("nil map")
		case "nil@x.com":
			return nil, nil
		}
		return &domain.SendResult{Success: true}, nil
	})
	d := dispatch.NewDispatcher(s, dispatch.DispatcherConfig{})

	outcomes := d.Dispatch(context.Background(), dispatch.Batch{
		Recipients: []string{"rejected@x.com", "boom@x.com", "nil@x.com", "ok@x.com"},
	})
	require.Len(t, outcomes, 4)
	assert.Equal(t, "suppressed", outcomes[0].ErrorMessage)
	assert.Contains(t, outcomes[1].ErrorMessage, "panic")
	assert.False(t, outcomes[2].Success)
	assert.True(t, outcomes[3].Success)
}

func TestDispatchConcurrentKeepsOrder(t *testing.T) {
	var inFlight, peak int32
	s := sending.SenderFunc(func(_ context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &domain.SendResult{Success: msg.Email != "r3@x.com", Error: "bounced"}, nil
	})

	recipients := []string{"r0@x.com", "r1@x.com", "r2@x.com", "r3@x.com", "r4@x.com", "r5@x.com", "r6@x.com", "r7@x.com"}
	var tracked int32
	d := dispatch.NewDispatcher(s, dispatch.DispatcherConfig{Concurrency: 3})
	outcomes := d.Dispatch(context.Background(), dispatch.Batch{
		Recipients: recipients,
		OnOutcome:  func(context.Context, domain.SendOutcome) { atomic.AddInt32(&tracked, 1) },
	})

	require.Len(t, outcomes, len(recipients))
	for i, o := range outcomes {
		assert.Equal(t, recipients[i], o.Address)
		assert.Equal(t, i != 3, o.Success)
	}
	assert.Equal(t, int32(len(recipients)), atomic.LoadInt32(&tracked))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}
