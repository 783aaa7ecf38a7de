package esp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/promo-dispatch/internal/config"
	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/pkg/httpretry"
)

func testMessage() *domain.EmailMessage {
	return &domain.EmailMessage{
		ID:          "m-1",
		DispatchID:  "d-1",
		TemplateID:  "discount-offer",
		Email:       "a@x.com",
		FromName:    "Acme",
		FromEmail:   "news@acme.test",
		ReplyTo:     "help@acme.test",
		Subject:     "15% off",
		HTMLContent: "<p>hi</p>",
	}
}

func TestSparkPostSend(t *testing.T) {
	var got transmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transmissions", r.URL.Path)
		assert.Equal(t, "sp-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"results":{"id":"tx-42","total_accepted_recipients":1,"total_rejected_recipients":0}}`))
	}))
	defer srv.Close()

	s := NewSparkPostSender("sp-key", srv.URL+"/api/v1/", srv.Client())
	res, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tx-42", res.MessageID)
	assert.Equal(t, domain.ESPSparkPost, res.ESPType)

	require.Len(t, got.Recipients, 1)
	assert.Equal(t, "a@x.com", got.Recipients[0].Address.Email)
	assert.Equal(t, "news@acme.test", got.Content.From.Email)
	assert.Equal(t, "15% off", got.Content.Subject)
	assert.Equal(t, "d-1", got.Metadata["dispatch_id"])
}

func TestSparkPostRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"invalid data format/type","description":"Invalid recipient address","code":"1300"}]}`))
	}))
	defer srv.Close()

	s := NewSparkPostSender("sp-key", srv.URL, srv.Client())
	res, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid recipient address")
	assert.Contains(t, res.Error, "400")
}

func TestSparkPostRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"results":{"id":"tx-2","total_accepted_recipients":1}}`))
	}))
	defer srv.Close()

	client := httpretry.NewRetryClient(srv.Client(), httpretry.Options{MaxRetries: 1, BaseDelay: time.Millisecond, MinDelay: time.Millisecond})
	res, err := NewSparkPostSender("sp-key", srv.URL, client).Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, calls)
}

func TestSparkPostMissingKey(t *testing.T) {
	_, err := NewSparkPostSender("", "", nil).Send(context.Background(), testMessage())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSend(t *testing.T) {
	api := &fakeSES{}
	s := &SESSender{client: api, configurationSet: "promo"}

	res, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ses-1", res.MessageID)

	require.NotNil(t, api.in)
	assert.Equal(t, `"Acme" <news@acme.test>`, aws.ToString(api.in.FromEmailAddress))
	assert.Equal(t, []string{"a@x.com"}, api.in.Destination.ToAddresses)
	assert.Equal(t, []string{"help@acme.test"}, api.in.ReplyToAddresses)
	assert.Equal(t, "promo", aws.ToString(api.in.ConfigurationSetName))
	assert.Equal(t, "<p>hi</p>", aws.ToString(api.in.Content.Simple.Body.Html.Data))
}

func TestSESFailure(t *testing.T) {
	s := &SESSender{client: &fakeSES{err: errors.New("MessageRejected: Email address is not verified")}}
	res, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not verified")
}

type fakeResend struct {
	params *resend.SendEmailRequest
	err    error
}

func (f *fakeResend) SendWithContext(_ context.Context, p *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.params = p
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "rs-1"}, nil
}

func TestResendSend(t *testing.T) {
	api := &fakeResend{}
	s := &ResendSender{emails: api}

	res, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "rs-1", res.MessageID)
	assert.Equal(t, []string{"a@x.com"}, api.params.To)
	assert.Equal(t, "help@acme.test", api.params.ReplyTo)

	api.err = errors.New("rate limited")
	res, err = s.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "rate limited")
}

func TestLogSender(t *testing.T) {
	res, err := LogSender{}.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.MessageID)

	bad := testMessage()
	bad.Email = "not-an-address"
	res, err = LogSender{}.Send(context.Background(), bad)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid recipient address")
}

func TestNew(t *testing.T) {
	s, err := New(context.Background(), config.TransportConfig{Provider: "log"})
	require.NoError(t, err)
	assert.IsType(t, LogSender{}, s)

	s, err = New(context.Background(), config.TransportConfig{Provider: "sparkpost", SparkPost: config.SparkPostConfig{APIKey: "k"}})
	require.NoError(t, err)
	assert.IsType(t, &SparkPostSender{}, s)

	s, err = New(context.Background(), config.TransportConfig{Provider: "resend", Resend: config.ResendConfig{APIKey: "k"}})
	require.NoError(t, err)
	assert.IsType(t, &ResendSender{}, s)

	_, err = New(context.Background(), config.TransportConfig{Provider: "resend"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(context.Background(), config.TransportConfig{Provider: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
