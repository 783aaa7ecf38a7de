package dispatch_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/pkg/distlock"
	"github.com/ignite/promo-dispatch/internal/service/dispatch"
	"github.com/ignite/promo-dispatch/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	svc     *dispatch.Service
	store   *memStore
	sender  *captureSender
	counter *fakeCounter
	events  *fakeEvents
}

func newHarness(t *testing.T, cfg dispatch.ServiceConfig, locks distlock.Locker) *harness {
	t.Helper()
	h := &harness{
		store:   newMemStore("id1", "a@x.com", "id2", "b@y.com", "id3", "c@z.com"),
		sender:  newCaptureSender(),
		counter: &fakeCounter{},
		events:  &fakeEvents{},
	}
	h.svc = dispatch.NewService(dispatch.Deps{
		Templates:  testRegistry(),
		Renderer:   templates.NewRenderer(),
		Store:      h.store,
		Dispatcher: dispatch.NewDispatcher(h.sender, dispatch.DispatcherConfig{}),
		Events:     h.events,
		Counter:    h.counter,
		Locks:      locks,
	}, cfg)
	return h
}

func TestSendSelectedEndToEnd(t *testing.T) {
	h := newHarness(t, dispatch.ServiceConfig{}, nil)

	summary, err := h.svc.Send(context.Background(), dispatch.SendRequest{
		TemplateID: "discount-offer",
		Subject:    "15% off this week",
		Values:     validValues(),
		Selection:  domain.Selected("id1", "id2"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalRecipients)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 0, summary.FailureCount)
	assert.Equal(t, "discount-offer", summary.TemplateID)
	assert.Equal(t, "15% off this week", summary.Subject)
	assert.Contains(t, summary.RenderedContent, "15%")
	assert.Contains(t, summary.RenderedContent, `href="https://example.com/promo"`)
	assert.NotEmpty(t, summary.DispatchID)

	calls := h.store.calls()
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.Equal(t, domain.SendStatusSent, c.Tracking.Status)
		assert.True(t, c.Tracking.IncrementCount)
		assert.Equal(t, "Discount Offer", c.Tracking.History.TemplateName)
	}
	assert.Equal(t, "a@x.com", calls[0].Email)
	assert.Equal(t, "b@y.com", calls[1].Email)

	assert.Equal(t, 1, h.counter.calls)
	assert.Equal(t, 2, h.counter.sent)
	assert.Len(t, h.events.events, 2)
}

func TestSendPartialFailure(t *testing.T) {
	h := newHarness(t, dispatch.ServiceConfig{}, nil)
	h.sender.failOn["b@y.com"] = "rejected"

	summary, err := h.svc.Send(context.Background(), dispatch.SendRequest{
		TemplateID: "discount-offer",
		Subject:    "Deal",
		Values:     validValues(),
		Selection:  domain.Custom("a@x.com, b@y.com, c@z.com"),
	})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 3)
	assert.True(t, summary.Outcomes[0].Success)
	assert.False(t, summary.Outcomes[1].Success)
	assert.True(t, summary.Outcomes[2].Success)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)

	calls := h.store.calls()
	require.Len(t, calls, 3)
	assert.False(t, calls[1].Tracking.IncrementCount)
	assert.Equal(t, domain.SendStatusFailed, calls[1].Tracking.Status)
	assert.Equal(t, 2, h.counter.sent)
	assert.Equal(t, 1, h.counter.failed)
}

func TestSendTrackingFailureKeepsOutcome(t *testing.T) {
	h := newHarness(t, dispatch.ServiceConfig{}, nil)
	h.store.failEmail["a@x.com"] = true

	summary, err := h.svc.Send(context.Background(), dispatch.SendRequest{
		TemplateID: "discount-offer",
		Subject:    "Deal",
		Values:     validValues(),
		Selection:  domain.Custom("a@x.com,b@y.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Len(t, h.store.calls(), 2)
}

func TestSendAllFailedStillReturnsSummary(t *testing.T) {
	h := newHarness(t, dispatch.ServiceConfig{}, nil)
	h.sender.failOn["a@x.com"] = "bad"
	h.sender.failOn["b@y.com"] = "bad"

	summary, err := h.svc.Send(context.Background(), dispatch.SendRequest{
		TemplateID: "discount-offer", Subject: "Deal", Values: validValues(),
		Selection: domain.Custom("a@x.com,b@y.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SuccessCount)
	assert.Equal(t, 2, summary.FailureCount)
}

func TestSendDeduplicates(t *testing.T) {
	h := newHarness(t, dispatch.ServiceConfig{}, nil)
	summary, err := h.svc.Send(context.Background(), dispatch.SendRequest{
		TemplateID: "discount-offer", Subject: "Deal", Values: validValues(),
		Selection: domain.Custom("a@x.com, A@X.com, b@y.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalRecipients)
	assert.Equal(t, 1, summary.DuplicateCount)
	assert.Equal(t, 2, summary.AttemptedCount)
	assert.Equal(t, []string{"a@x.com", "b@y.com"}, h.sender.addresses())
}

func TestSendRejectsBeforeTransport(t *testing.T) {
	tests := []struct {
		name string
		req  dispatch.SendRequest
		want error
	}{
		{
			name: "unknown template",
			req:  dispatch.SendRequest{TemplateID: "nope", Subject: "x", Values: validValues(), Selection: domain.Custom("a@x.com")},
			want: templates.ErrTemplateNotFound,
		},
		{
			name: "missing subject",
			req:  dispatch.SendRequest{TemplateID: "discount-offer", Subject: "  ", Values: validValues(), Selection: domain.Custom("a@x.com")},
			want: dispatch.ErrSubjectRequired,
		},
		{
			name: "invalid url",
			req: dispatch.SendRequest{TemplateID: "discount-offer", Subject: "x",
				Values: domain.FieldValues{"discountPercentage": "15", "ctaUrl": "not-a-url"}, Selection: domain.Custom("a@x.com")},
			want: dispatch.ErrInvalidFields,
		},
		{
			name: "empty selected",
			req:  dispatch.SendRequest{TemplateID: "discount-offer", Subject: "x", Values: validValues(), Selection: domain.Selected()},
			want: dispatch.ErrNoIDsProvided,
		},
		{
			name: "empty custom",
			req:  dispatch.SendRequest{TemplateID: "discount-offer", Subject: "x", Values: validValues(), Selection: domain.Custom("")},
			want: dispatch.ErrNoListProvided,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, dispatch.ServiceConfig{}, nil)
			summary, err := h.svc.Send(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, summary)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, h.sender.addresses())
			assert.Empty(t, h.store.calls())
			assert.Equal(t, 0, h.counter.calls)
		})
	}
}

func TestSendValidationErrorFields(t *testing.T) {
	h := newHarness(t, dispatch.ServiceConfig{}, nil)
	_, err := h.svc.Send(context.Background(), dispatch.SendRequest{
		TemplateID: "discount-offer", Subject: "x",
		Values:    domain.FieldValues{"discountPercentage": "15", "ctaUrl": "not-a-url"},
		Selection: domain.Custom("a@x.com"),
	})
	var verr *dispatch.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.FieldErrors{"ctaUrl": "Enter a valid URL"}, verr.Fields)
	assert.True(t, dispatch.IsInputError(err))
}

func TestSendMaxRecipients(t *testing.T) {
	h := newHarness(t, dispatch.ServiceConfig{MaxRecipients: 2}, nil)
	_, err := h.svc.Send(context.Background(), dispatch.SendRequest{
		TemplateID: "discount-offer", Subject: "x", Values: validValues(),
		Selection: domain.Custom("a@x.com,b@y.com,c@z.com"),
	})
	assert.ErrorIs(t, err, dispatch.ErrTooManyRecipients)
	assert.Empty(t, h.sender.addresses())
}

func TestSendRejectsDuplicateInFlight(t *testing.T) {
	locks := distlock.NewProvider(nil, nil, time.Minute)
	h := newHarness(t, dispatch.ServiceConfig{}, locks)

	req := dispatch.SendRequest{
		TemplateID: "discount-offer", Subject: "x", Values: validValues(),
		Selection: domain.Custom("a@x.com,b@y.com"),
	}

	var nested error
	h.sender.hook = func(msg *domain.EmailMessage) {
		if msg.Email == "a@x.com" {
			// same recipients in a different order and case
			dup := req
			dup.Selection = domain.Custom("B@y.com,a@x.com")
			_, nested = h.svc.Send(context.Background(), dup)
		}
	}

	_, err := h.svc.Send(context.Background(), req)
	require.NoError(t, err)
	assert.ErrorIs(t, nested, dispatch.ErrDispatchInProgress)

	// released once the first dispatch finished
	h.sender.hook = nil
	_, err = h.svc.Send(context.Background(), req)
	assert.NoError(t, err)
}

func TestSendHoldsRedisLockDuringDispatch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	h := newHarness(t, dispatch.ServiceConfig{}, distlock.NewProvider(client, nil, time.Minute))
	key := distlock.KeyPrefix + "dispatch:" +
		dispatch.Fingerprint("discount-offer", "x", []string{"a@x.com"})

	var heldDuringSend bool
	h.sender.hook = func(*domain.EmailMessage) { heldDuringSend = mr.Exists(key) }

	_, err := h.svc.Send(context.Background(), dispatch.SendRequest{
		TemplateID: "discount-offer", Subject: "x", Values: validValues(),
		Selection: domain.Custom("a@x.com"),
	})
	require.NoError(t, err)
	assert.True(t, heldDuringSend)
	assert.False(t, mr.Exists(key))
}

func TestPreviewAndValidate(t *testing.T) {
	h := newHarness(t, dispatch.ServiceConfig{}, nil)

	html, missing, err := h.svc.Preview("discount-offer", domain.FieldValues{"ctaUrl": "javascript:alert(1)"})
	require.NoError(t, err)
	assert.True(t, missing)
	assert.Contains(t, html, `href="#"`)
	assert.False(t, strings.Contains(html, "javascript:"))

	errs, err := h.svc.Validate("discount-offer", domain.FieldValues{"discountPercentage": "15", "ctaUrl": "not-a-url"})
	require.NoError(t, err)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs, "ctaUrl")

	_, err = h.svc.Validate("missing", nil)
	assert.ErrorIs(t, err, templates.ErrTemplateNotFound)
}

func TestFingerprintIgnoresOrderAndCase(t *testing.T) {
	a := dispatch.Fingerprint("t", "s", []string{"a@x.com", "B@y.com"})
	b := dispatch.Fingerprint("t", "s", []string{"b@y.com", "A@x.com"})
	c := dispatch.Fingerprint("t", "other", []string{"a@x.com", "b@y.com"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
