package esp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ignite/promo-dispatch/internal/config"
	"github.com/ignite/promo-dispatch/internal/pkg/httpretry"
	"github.com/ignite/promo-dispatch/internal/service/sending"
)

// New returns the Sender selected by cfg.Provider.
func New(ctx context.Context, cfg config.TransportConfig) (sending.Sender, error) {
	switch cfg.Provider {
	case "", "log":
		return LogSender{}, nil
	case "ses":
		return NewSESSender(ctx, cfg.SES, cfg.MaxRetries)
	case "sparkpost":
		if cfg.SparkPost.APIKey == "" {
			return nil, fmt.Errorf("%w: sparkpost api key missing", ErrNotConfigured)
		}
		client := httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, httpretry.Options{MaxRetries: cfg.MaxRetries})
		return NewSparkPostSender(cfg.SparkPost.APIKey, cfg.SparkPost.BaseURL, client), nil
	case "resend":
		if cfg.Resend.APIKey == "" {
			return nil, fmt.Errorf("%w: resend api key missing", ErrNotConfigured)
		}
		return NewResendSender(cfg.Resend.APIKey), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
