package game

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/events"
	"github.com/vanillake254/BAHATI-YANGU/logging"
	"github.com/vanillake254/BAHATI-YANGU/types"
)

// ErrClosed is returned by Play after Close
var ErrClosed = errors.New("game: orchestrator closed")

// BalanceSink receives the balance reported by a revealed round;
// *wallet.Projection satisfies it
type BalanceSink interface {
	ApplyBalance(display decimal.Decimal)
}

// Reconciler is implemented by sinks that re-read the full balance after a
// round, since a round reports the display total only
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// Options configures an Orchestrator
type Options struct {
	Variant   Variant
	Requester Requester
	Wallet    BalanceSink
	Publisher events.Publisher
	Clock     clockwork.Clock
	Logger    zerolog.Logger
	// OnChange receives a snapshot after every state change
	OnChange func(Round)
}

// Orchestrator runs rounds of one game, one at a time
type Orchestrator struct {
	variant   Variant
	requester Requester
	wallet    BalanceSink
	publisher events.Publisher
	clock     clockwork.Clock
	logger    zerolog.Logger
	onChange  func(Round)

	mu    sync.Mutex
	round Round
	// gen identifies the live round; timers and late responses for any
	// other value are ignored
	gen     uint64
	timer   clockwork.Timer
	settled chan struct{}
	closed  bool
}

// NewOrchestrator creates an orchestrator with an IDLE round
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	settled := make(chan struct{})
	close(settled)

	return &Orchestrator{
		variant:   opts.Variant,
		requester: opts.Requester,
		wallet:    opts.Wallet,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		logger:    logging.WithGameKind(logging.WithComponent(opts.Logger, "game"), string(opts.Variant.Kind())),
		onChange:  opts.OnChange,
		round:     Round{Kind: opts.Variant.Kind(), State: StateIdle},
		settled:   settled,
	}
}

// Prepare loads whatever the variant needs before the first round
func (o *Orchestrator) Prepare(ctx context.Context) error {
	p, ok := o.variant.(Preparer)
	if !ok {
		return nil
	}
	return p.Prepare(ctx, o.requester)
}

// Variant returns the game rules this orchestrator plays
func (o *Orchestrator) Variant() Variant {
	return o.variant
}

// Play validates the input, submits the stake and starts the reveal. It
// returns once the round is ANIMATING (or failed); Wait blocks until the
// reveal.
func (o *Orchestrator) Play(ctx context.Context, stake decimal.Decimal, input string) (Round, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Round{}, ErrClosed
	}
	if o.round.State.Busy() {
		snapshot := o.round
		o.mu.Unlock()
		return snapshot, apperrors.New(apperrors.ErrRoundInProgress, "A round is already in progress.")
	}

	sel, err := o.variant.Validate(stake, input)
	if err != nil {
		o.round = Round{
			Kind:   o.variant.Kind(),
			Stake:  stake,
			State:  StateIdle,
			Notice: types.NewNotice(types.SeverityError, apperrors.UserMessage(err, "Invalid input.")),
		}
		snapshot := o.round
		o.mu.Unlock()
		o.emit(snapshot)
		return snapshot, err
	}

	o.gen++
	gen := o.gen
	o.round = Round{
		ID:        uuid.New().String(),
		Kind:      o.variant.Kind(),
		Stake:     stake,
		Selection: sel,
		State:     StateSubmitting,
		StartedAt: o.clock.Now(),
	}
	o.settled = make(chan struct{})
	snapshot := o.round
	o.mu.Unlock()
	o.emit(snapshot)

	logger := logging.WithRoundID(o.logger, snapshot.ID)
	logger.Debug().Str("stake", stake.String()).Msg("Submitting round")

	outcome, err := o.variant.Submit(ctx, o.requester, stake, sel)

	o.mu.Lock()
	if gen != o.gen || o.closed {
		o.mu.Unlock()
		logger.Info().Msg("Discarding result for a closed game")
		return snapshot, ErrClosed
	}

	if err != nil {
		o.round.State = StateError
		o.round.Notice = types.NewNotice(types.SeverityError, apperrors.UserMessage(err, o.variant.FailureMessage()))
		close(o.settled)
		snapshot = o.round
		o.mu.Unlock()

		logger.Warn().Err(err).Msg("Round failed")
		o.emit(snapshot)
		o.publish(ctx, snapshot, logger)
		return snapshot, err
	}

	frozen := outcome
	pres := o.variant.Present(sel, frozen)
	o.round.Outcome = &frozen
	o.round.Rotation = pres.Rotation
	o.round.Aligned = pres.Aligned
	o.round.State = StateAnimating
	o.round.RevealAt = o.clock.Now().Add(pres.Duration)
	if !pres.Aligned {
		o.round.Notice = pres.Notice
	}
	o.timer = o.clock.AfterFunc(pres.Duration, func() {
		o.reveal(gen, pres.Notice)
	})
	snapshot = o.round
	o.mu.Unlock()

	if !pres.Aligned {
		logger.Warn().Str("label", frozen.Label).Msg("Outcome label is not on the wheel")
	}
	o.emit(snapshot)
	return snapshot, nil
}

func (o *Orchestrator) reveal(gen uint64, notice *types.Notice) {
	o.mu.Lock()
	if gen != o.gen || o.round.State != StateAnimating {
		o.mu.Unlock()
		return
	}
	o.round.State = StateRevealed
	o.round.Notice = notice
	o.timer = nil
	close(o.settled)
	snapshot := o.round
	o.mu.Unlock()

	if o.wallet != nil {
		o.wallet.ApplyBalance(snapshot.Outcome.Balance)
	}
	logger := logging.WithRoundID(o.logger, snapshot.ID)
	logger.Info().
		Str("label", snapshot.Outcome.Label).
		Str("win_amount", snapshot.Outcome.WinAmount.String()).
		Bool("aligned", snapshot.Aligned).
		Msg("Round revealed")
	o.emit(snapshot)
	o.publish(context.Background(), snapshot, logger)

	if r, ok := o.wallet.(Reconciler); ok {
		if err := r.Reconcile(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Wallet reconcile after round failed")
		}
	}
}

// Current returns the live round
func (o *Orchestrator) Current() Round {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.round
}

// Wait blocks until the live round leaves SUBMITTING and ANIMATING
func (o *Orchestrator) Wait(ctx context.Context) (Round, error) {
	o.mu.Lock()
	settled := o.settled
	o.mu.Unlock()

	select {
	case <-settled:
		return o.Current(), nil
	case <-ctx.Done():
		return o.Current(), ctx.Err()
	}
}

// Close tears the game down: the reveal timer stops and late results are
// dropped. Waiters are released.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.gen++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	select {
	case <-o.settled:
	default:
		close(o.settled)
	}
}

func (o *Orchestrator) emit(r Round) {
	if o.onChange != nil {
		o.onChange(r)
	}
}

func (o *Orchestrator) publish(ctx context.Context, r Round, logger zerolog.Logger) {
	if err := o.publisher.Publish(ctx, events.Event{
		Type:    events.TypeRound,
		Key:     r.ID,
		At:      o.clock.Now(),
		Payload: r,
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish round event")
	}
}
