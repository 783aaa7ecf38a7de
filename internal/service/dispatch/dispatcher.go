package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ignite/promo-dispatch/internal/domain"
	"github.com/ignite/promo-dispatch/internal/pkg/logger"
	"github.com/ignite/promo-dispatch/internal/service/sending"
)

// Envelope holds the sender identity stamped on every message.
type Envelope struct {
	FromName  string
	FromEmail string
	ReplyTo   string
}

// DispatcherConfig tunes a Dispatcher. Zero values mean sequential delivery
// with no per-recipient timeout.
type DispatcherConfig struct {
	Envelope    Envelope
	Timeout     time.Duration // per transport call
	Concurrency int           // >1 enables a bounded worker pool
}

// Dispatcher delivers one rendered message to a list of recipients, one
// transport call per recipient and no retries.
type Dispatcher struct {
	sender sending.Sender
	cfg    DispatcherConfig
}

// NewDispatcher creates a Dispatcher sending through sender.
func NewDispatcher(sender sending.Sender, cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{sender: sender, cfg: cfg}
}

// OutcomeFunc is called for each attempted recipient after its transport
// call settles and before the dispatcher moves on.
type OutcomeFunc func(ctx context.Context, outcome domain.SendOutcome)

// Batch is the input to Dispatch.
type Batch struct {
	DispatchID string
	TemplateID string
	Recipients []string
	Subject    string
	HTML       string
	OnOutcome  OutcomeFunc
}

// Dispatch returns exactly one outcome per recipient, in recipient order.
//
// With Concurrency 1 recipient n+1 is not started until recipient n's send
// and OnOutcome call have both returned. With a larger pool each
// recipient's send and OnOutcome still run together on one worker, and
// Dispatch returns only after every worker has settled.
//
// ctx is checked before each recipient. Once it is done the remaining
// recipients are reported as OutcomeNotAttempted without a transport call.
func (d *Dispatcher) Dispatch(ctx context.Context, b Batch) []domain.SendOutcome {
	outcomes := make([]domain.SendOutcome, len(b.Recipients))

	if d.cfg.Concurrency == 1 {
		for i, addr := range b.Recipients {
			outcomes[i] = d.deliver(ctx, b, addr)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for i, addr := range b.Recipients {
		i, addr := i, addr
		g.Go(func() error {
			outcomes[i] = d.deliver(ctx, b, addr)
			return nil
		})
	}
	g.Wait()
	return outcomes
}

func (d *Dispatcher) deliver(ctx context.Context, b Batch, addr string) domain.SendOutcome {
	if ctx.Err() != nil {
		return domain.SendOutcome{
			Address:      addr,
			Status:       domain.OutcomeNotAttempted,
			ErrorMessage: "dispatch cancelled before this recipient was attempted",
		}
	}

	outcome := d.sendOne(ctx, b, addr)
	if b.OnOutcome != nil {
		// bookkeeping for an attempted send must survive cancellation
		b.OnOutcome(context.WithoutCancel(ctx), outcome)
	}
	return outcome
}

func (d *Dispatcher) sendOne(ctx context.Context, b Batch, addr string) (outcome domain.SendOutcome) {
	outcome.Address = addr

	defer func() {
		if r := recover(); r != nil {
			logger.Error("transport panicked", "dispatch_id", b.DispatchID, "recipient", addr, "panic", fmt.Sprint(r))
			outcome = failed(addr, fmt.Sprintf("transport panic: %v", r))
		}
	}()

	sendCtx := ctx
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	msg := &domain.EmailMessage{
		ID:          uuid.NewString(),
		DispatchID:  b.DispatchID,
		TemplateID:  b.TemplateID,
		Email:       addr,
		FromName:    d.cfg.Envelope.FromName,
		FromEmail:   d.cfg.Envelope.FromEmail,
		ReplyTo:     d.cfg.Envelope.ReplyTo,
		Subject:     b.Subject,
		HTMLContent: b.HTML,
	}

	res, err := d.sender.Send(sendCtx, msg)
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return failed(addr, fmt.Sprintf("transport timed out after %s", d.cfg.Timeout))
	case err != nil:
		return failed(addr, err.Error())
	case res == nil:
		return failed(addr, "transport returned no result")
	case !res.Success:
		if res.Error != "" {
			return failed(addr, res.Error)
		}
		return failed(addr, "transport reported failure")
	}

	return domain.SendOutcome{
		Address:   addr,
		Success:   true,
		Status:    domain.OutcomeSent,
		MessageID: res.MessageID,
	}
}

func failed(addr, msg string) domain.SendOutcome {
	return domain.SendOutcome{
		Address:      addr,
		Status:       domain.OutcomeFailed,
		ErrorMessage: msg,
	}
}
