package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/events"
	"github.com/vanillake254/BAHATI-YANGU/logging"
	"github.com/vanillake254/BAHATI-YANGU/wallet"
)

// PollerConfig holds the settlement polling cadence
type PollerConfig struct {
	// Interval between polls while the transaction is PENDING
	Interval time.Duration
	// RetryInterval after a failed poll
	RetryInterval time.Duration
	// Deadline measured from submission
	Deadline time.Duration
	// SuccessToast is how long the success notice stays up
	SuccessToast time.Duration
}

// DefaultPollerConfig returns the production cadence
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:      time.Second,
		RetryInterval: 1500 * time.Millisecond,
		Deadline:      time.Minute,
		SuccessToast:  3 * time.Second,
	}
}

func (c PollerConfig) withDefaults() PollerConfig {
	def := DefaultPollerConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = def.RetryInterval
	}
	if c.Deadline <= 0 {
		c.Deadline = def.Deadline
	}
	if c.SuccessToast <= 0 {
		c.SuccessToast = def.SuccessToast
	}
	return c
}

// StatusFetcher reads a transaction's settlement status; *Client satisfies it
type StatusFetcher interface {
	Status(ctx context.Context, id int64) (Transaction, error)
}

// WalletRefresher reloads the wallet after a settlement; *wallet.Projection
// satisfies it
type WalletRefresher interface {
	Refresh(ctx context.Context) (wallet.Wallet, error)
}

// PollerOptions configures a Poller
type PollerOptions struct {
	Fetcher   StatusFetcher
	Wallet    WalletRefresher
	Publisher events.Publisher
	Clock     clockwork.Clock
	Logger    zerolog.Logger
	Config    PollerConfig
}

// Poller watches submitted transactions until they settle or time out
type Poller struct {
	fetcher   StatusFetcher
	wallet    WalletRefresher
	publisher events.Publisher
	clock     clockwork.Clock
	logger    zerolog.Logger
	cfg       PollerConfig
}

// NewPoller creates a poller
func NewPoller(opts PollerOptions) *Poller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	return &Poller{
		fetcher:   opts.Fetcher,
		wallet:    opts.Wallet,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		logger:    logging.WithComponent(opts.Logger, "poller"),
		cfg:       opts.Config.withDefaults(),
	}
}

// WatchRequest identifies the transaction to follow
type WatchRequest struct {
	TransactionID int64
	// Kind and Amount scope the notices; when empty they are taken from
	// the first status response.
	Kind   Kind
	Amount decimal.Decimal
	// SubmittedAt starts the deadline; zero means now
	SubmittedAt time.Time
	// OnObservation receives every committed observation in order. It runs
	// with the handle locked and must not call back into the handle.
	OnObservation func(Observation)
}

// Handle is a running watch
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}

	// emitMu serialises commits against Cancel
	emitMu  sync.Mutex
	stopped bool
	last    Observation
}

// Cancel stops polling. Once it returns no further observation is
// committed and no wallet refresh or notice follows.
func (h *Handle) Cancel() {
	h.emitMu.Lock()
	h.stopped = true
	h.emitMu.Unlock()
	h.cancel()
}

// Done is closed when the watch has ended
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the last committed observation
func (h *Handle) Result() Observation {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	return h.last
}

// Wait blocks until the watch ends and returns its final observation
func (h *Handle) Wait(ctx context.Context) (Observation, error) {
	select {
	case <-h.done:
		return h.Result(), nil
	case <-ctx.Done():
		return h.Result(), ctx.Err()
	}
}

func (h *Handle) commit(obs Observation, fn func(Observation)) bool {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	if h.stopped {
		return false
	}
	h.last = obs
	if fn != nil {
		fn(obs)
	}
	return true
}

func (h *Handle) isStopped() bool {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	return h.stopped
}

func (h *Handle) abort() {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	h.stopped = true
	h.last.Phase = PhaseAborted
	h.last.Notice = nil
}

// Watch starts polling in the background. Cancelling ctx has the same
// effect as Handle.Cancel.
func (p *Poller) Watch(ctx context.Context, req WatchRequest) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	start := req.SubmittedAt
	if start.IsZero() {
		start = p.clock.Now()
	}
	deadlineAt := start.Add(p.cfg.Deadline)
	remaining := deadlineAt.Sub(p.clock.Now())
	if remaining < 0 {
		remaining = 0
	}

	expired := make(chan struct{})
	deadline := p.clock.AfterFunc(remaining, func() { close(expired) })

	go p.run(ctx, h, req, start, deadlineAt, expired, deadline)
	return h
}

func (p *Poller) run(ctx context.Context, h *Handle, req WatchRequest, start, deadlineAt time.Time, expired <-chan struct{}, deadline clockwork.Timer) {
	defer close(h.done)
	defer deadline.Stop()
	defer h.cancel()

	logger := logging.WithTransactionID(p.logger, req.TransactionID)

	obs := Observation{
		TransactionID: req.TransactionID,
		Kind:          req.Kind,
		Amount:        req.Amount,
		Phase:         PhaseSubmitted,
	}
	h.commit(obs, req.OnObservation)
	obs.Phase = PhasePolling
	h.commit(obs, req.OnObservation)

	for {
		if ctx.Err() != nil {
			h.abort()
			return
		}

		obs.Polls++
		tx, err := p.poll(ctx, req.TransactionID, expired)
		now := p.clock.Now()
		obs.Elapsed = now.Sub(start)

		if ctx.Err() != nil {
			h.abort()
			return
		}

		var wait time.Duration
		switch {
		case apperrors.IsAuth(err):
			logger.Info().Msg("Session ended while polling, stopping")
			h.abort()
			return
		case err != nil:
			logger.Debug().Err(err).Int("poll", obs.Polls).Msg("Status poll failed, retrying")
			wait = p.cfg.RetryInterval
		default:
			if obs.Kind == "" {
				obs.Kind = tx.Kind
			}
			if obs.Amount.IsZero() {
				obs.Amount = tx.Amount
			}
			txCopy := tx
			obs.Transaction = &txCopy
			if tx.Terminal() {
				p.settle(ctx, h, req, obs, tx, logger)
				return
			}
			h.commit(obs, req.OnObservation)
			wait = p.cfg.Interval
		}

		if !now.Before(deadlineAt) {
			p.timeout(ctx, h, req, obs, logger)
			return
		}
		if rem := deadlineAt.Sub(now); wait > rem {
			wait = rem
		}

		select {
		case <-ctx.Done():
			h.abort()
			return
		case <-expired:
		case <-p.clock.After(wait):
		}

		if !p.clock.Now().Before(deadlineAt) {
			obs.Elapsed = p.clock.Now().Sub(start)
			p.timeout(ctx, h, req, obs, logger)
			return
		}
	}
}

// poll runs one status request. Reaching the deadline cancels a request
// that is still in flight.
func (p *Poller) poll(ctx context.Context, id int64, expired <-chan struct{}) (Transaction, error) {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-expired:
			cancel()
		case <-pollCtx.Done():
		}
	}()
	return p.fetcher.Status(pollCtx, id)
}

func (p *Poller) settle(ctx context.Context, h *Handle, req WatchRequest, obs Observation, tx Transaction, logger zerolog.Logger) {
	kind := kindOrDeposit(obs.Kind)
	if tx.Status == StatusSuccess {
		obs.Phase = PhaseSuccess
		obs.Notice = successNotice(kind, obs.Amount, p.cfg.SuccessToast)
	} else {
		obs.Phase = PhaseFailed
		obs.Notice = failureNotice(kind, tx)
	}

	if h.isStopped() {
		return
	}
	p.refreshWallet(ctx, logger)
	if ctx.Err() != nil {
		h.abort()
		return
	}
	if !h.commit(obs, req.OnObservation) {
		return
	}

	logger.Info().
		Str("phase", string(obs.Phase)).
		Str("final_state", tx.FinalState).
		Int("polls", obs.Polls).
		Dur("elapsed", obs.Elapsed).
		Msg("Transaction settled")
	p.publish(ctx, obs, logger)
}

func (p *Poller) timeout(ctx context.Context, h *Handle, req WatchRequest, obs Observation, logger zerolog.Logger) {
	obs.Phase = PhaseTimeout
	obs.Notice = timeoutNotice(kindOrDeposit(obs.Kind))
	if !h.commit(obs, req.OnObservation) {
		return
	}
	logger.Warn().Int("polls", obs.Polls).Dur("elapsed", obs.Elapsed).Msg("Transaction polling timed out")
	p.publish(ctx, obs, logger)
}

func (p *Poller) refreshWallet(ctx context.Context, logger zerolog.Logger) {
	if p.wallet == nil {
		return
	}
	if _, err := p.wallet.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("Wallet refresh after settlement failed")
	}
}

func (p *Poller) publish(ctx context.Context, obs Observation, logger zerolog.Logger) {
	err := p.publisher.Publish(ctx, events.Event{
		Type:    events.TypeSettlement,
		Key:     fmt.Sprintf("tx-%d", obs.TransactionID),
		At:      p.clock.Now(),
		Payload: obs,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to publish settlement event")
	}
}

func kindOrDeposit(kind Kind) Kind {
	if kind == "" {
		return KindDeposit
	}
	return kind
}
