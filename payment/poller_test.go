package payment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/events"
	"github.com/vanillake254/BAHATI-YANGU/logging"
	"github.com/vanillake254/BAHATI-YANGU/types"
	"github.com/vanillake254/BAHATI-YANGU/wallet"
)

// scriptedFetcher answers by time since the watch started
type scriptedFetcher struct {
	clock  clockwork.Clock
	start  time.Time
	answer func(elapsed time.Duration, poll int) (Transaction, error)

	// hangFrom makes every poll from that elapsed time on block until its
	// context ends; zero never hangs
	hangFrom time.Duration
	hung     chan struct{}
	hungOnce sync.Once

	mu    sync.Mutex
	times []time.Duration
}

func (f *scriptedFetcher) Status(ctx context.Context, _ int64) (Transaction, error) {
	f.mu.Lock()
	elapsed := f.clock.Now().Sub(f.start)
	f.times = append(f.times, elapsed)
	poll := len(f.times)
	f.mu.Unlock()

	if f.hangFrom > 0 && elapsed >= f.hangFrom {
		f.hungOnce.Do(func() { close(f.hung) })
		<-ctx.Done()
		return Transaction{}, apperrors.Transport(ctx.Err(), "Network error. Check your connection.")
	}
	return f.answer(elapsed, poll)
}

func (f *scriptedFetcher) polls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.times...)
}

type countingWallet struct {
	calls atomic.Int32
}

func (w *countingWallet) Refresh(context.Context) (wallet.Wallet, error) {
	w.calls.Add(1)
	return wallet.Wallet{}, nil
}

type observations struct {
	mu   sync.Mutex
	list []Observation
}

func (o *observations) record(obs Observation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, obs)
}

func (o *observations) phases() []Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Phase, 0, len(o.list))
	for _, obs := range o.list {
		out = append(out, obs.Phase)
	}
	return out
}

type pollerFixture struct {
	clock     *clockwork.FakeClock
	fetcher   *scriptedFetcher
	wallet    *countingWallet
	publisher *events.Recorder
	poller    *Poller
}

func newPollerFixture(answer func(elapsed time.Duration, poll int) (Transaction, error)) *pollerFixture {
	clock := clockwork.NewFakeClock()
	f := &pollerFixture{
		clock:     clock,
		fetcher:   &scriptedFetcher{clock: clock, start: clock.Now(), answer: answer, hung: make(chan struct{})},
		wallet:    &countingWallet{},
		publisher: events.NewRecorder(),
	}
	f.poller = NewPoller(PollerOptions{
		Fetcher:   f.fetcher,
		Wallet:    f.wallet,
		Publisher: f.publisher,
		Clock:     clock,
		Logger:    logging.NewNop(),
		Config:    DefaultPollerConfig(),
	})
	return f
}

// drive advances the fake clock by step every time the poller is parked
// between polls (deadline timer plus one wait timer) until the watch ends.
func drive(t *testing.T, clock *clockwork.FakeClock, h *Handle, step time.Duration) {
	t.Helper()
	driveUntil(t, clock, h, step, nil)
}

// driveUntil is drive that also returns once stop is closed
func driveUntil(t *testing.T, clock *clockwork.FakeClock, h *Handle, step time.Duration, stop <-chan struct{}) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		blocked := make(chan error, 1)
		go func() { blocked <- clock.BlockUntilContext(ctx, 2) }()

		select {
		case <-h.Done():
			cancel()
			return
		case <-stop:
			cancel()
			return
		case err := <-blocked:
			cancel()
			require.NoError(t, err)
			clock.Advance(step)
		case <-time.After(5 * time.Second):
			cancel()
			t.Fatal("poller stalled")
		}
	}
	t.Fatal("poller did not finish")
}

func pending() (Transaction, error) {
	return Transaction{ID: 9, Status: StatusPending}, nil
}

func TestSuccessJustBeforeDeadline(t *testing.T) {
	f := newPollerFixture(func(elapsed time.Duration, _ int) (Transaction, error) {
		if elapsed < 59*time.Second {
			return pending()
		}
		return Transaction{ID: 9, Kind: KindWithdrawal, Amount: decimal.NewFromInt(150), Status: StatusSuccess}, nil
	})
	var obs observations

	h := f.poller.Watch(context.Background(), WatchRequest{
		TransactionID: 9,
		Kind:          KindWithdrawal,
		Amount:        decimal.NewFromInt(150),
		OnObservation: obs.record,
	})
	drive(t, f.clock, h, time.Second)

	result := h.Result()
	assert.Equal(t, PhaseSuccess, result.Phase)
	assert.Equal(t, 59*time.Second, result.Elapsed)
	assert.Equal(t, 60, result.Polls)
	require.NotNil(t, result.Notice)
	assert.Equal(t, "Cash out of KES 150 successful! Funds sent to M-Pesa.", result.Notice.Message)
	assert.Equal(t, 3*time.Second, result.Notice.DismissAfter)
	assert.NoError(t, result.Err())

	assert.Equal(t, int32(1), f.wallet.calls.Load())
	require.Len(t, f.publisher.Events(), 1)
	assert.Equal(t, events.TypeSettlement, f.publisher.Events()[0].Type)

	phases := obs.phases()
	assert.Equal(t, PhaseSubmitted, phases[0])
	assert.Equal(t, PhasePolling, phases[1])
	assert.Equal(t, PhaseSuccess, phases[len(phases)-1])
}

func TestTimeoutAtDeadline(t *testing.T) {
	f := newPollerFixture(func(time.Duration, int) (Transaction, error) {
		return pending()
	})

	h := f.poller.Watch(context.Background(), WatchRequest{TransactionID: 9, Kind: KindDeposit, Amount: decimal.NewFromInt(100)})
	drive(t, f.clock, h, time.Second)

	result := h.Result()
	assert.Equal(t, PhaseTimeout, result.Phase)
	assert.Equal(t, time.Minute, result.Elapsed)
	assert.True(t, apperrors.IsTimeout(result.Err()))
	assert.Contains(t, result.Notice.Message, "Timed out")
	assert.Zero(t, f.wallet.calls.Load())

	polls := f.fetcher.polls()
	assert.Len(t, polls, 60)
	assert.Equal(t, 59*time.Second, polls[len(polls)-1])

	f.clock.Advance(10 * time.Second)
	assert.Len(t, f.fetcher.polls(), 60, "no poll after a terminal state")
}

func TestTransportErrorRetriesAfterBackoff(t *testing.T) {
	f := newPollerFixture(func(_ time.Duration, poll int) (Transaction, error) {
		if poll == 1 {
			return Transaction{}, apperrors.Transport(context.DeadlineExceeded, "Network error. Check your connection.")
		}
		return Transaction{ID: 9, Status: StatusSuccess}, nil
	})
	var obs observations

	h := f.poller.Watch(context.Background(), WatchRequest{TransactionID: 9, Kind: KindDeposit, Amount: decimal.NewFromInt(50), OnObservation: obs.record})
	drive(t, f.clock, h, 500*time.Millisecond)

	assert.Equal(t, []time.Duration{0, 1500 * time.Millisecond}, f.fetcher.polls())
	assert.Equal(t, []Phase{PhaseSubmitted, PhasePolling, PhaseSuccess}, obs.phases(), "transport errors are not surfaced")
}

func TestUnreachableUntilDeadlineTimesOut(t *testing.T) {
	f := newPollerFixture(func(time.Duration, int) (Transaction, error) {
		return Transaction{}, apperrors.Transport(context.DeadlineExceeded, "Network error. Check your connection.")
	})
	var obs observations

	h := f.poller.Watch(context.Background(), WatchRequest{TransactionID: 9, Kind: KindDeposit, Amount: decimal.NewFromInt(100), OnObservation: obs.record})
	drive(t, f.clock, h, 500*time.Millisecond)

	result := h.Result()
	assert.Equal(t, PhaseTimeout, result.Phase)
	assert.Equal(t, time.Minute, result.Elapsed)
	assert.True(t, apperrors.IsTimeout(result.Err()))
	assert.Equal(t, []Phase{PhaseSubmitted, PhasePolling, PhaseTimeout}, obs.phases())

	polls := f.fetcher.polls()
	require.Len(t, polls, 40)
	for i, at := range polls {
		assert.Equal(t, time.Duration(i)*1500*time.Millisecond, at)
	}
	assert.Zero(t, f.wallet.calls.Load())
}

func TestHungPollTimesOutAtDeadline(t *testing.T) {
	f := newPollerFixture(func(time.Duration, int) (Transaction, error) {
		return pending()
	})
	f.fetcher.hangFrom = 55 * time.Second

	h := f.poller.Watch(context.Background(), WatchRequest{TransactionID: 9, Kind: KindWithdrawal, Amount: decimal.NewFromInt(100)})
	driveUntil(t, f.clock, h, time.Second, f.fetcher.hung)

	select {
	case <-h.Done():
		t.Fatal("watch ended before the deadline")
	default:
	}
	polls := f.fetcher.polls()
	require.NotEmpty(t, polls)
	assert.Equal(t, 55*time.Second, polls[len(polls)-1])

	require.NoError(t, f.clock.BlockUntilContext(context.Background(), 1))
	f.clock.Advance(5 * time.Second)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("hung poll kept the watch alive past the deadline")
	}
	result := h.Result()
	assert.Equal(t, PhaseTimeout, result.Phase)
	assert.Equal(t, time.Minute, result.Elapsed)
	assert.Equal(t, "Withdrawal timed out. Check your M-Pesa or try again.", result.Notice.Message)
	assert.Len(t, f.fetcher.polls(), len(polls), "no poll after the deadline")
}

func TestFailureNotices(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		final    string
		message  string
		severity types.Severity
	}{
		{"deposit cancelled by player", KindDeposit, "CANCELED", "User cancelled.", types.SeverityWarning},
		{"deposit rejected", KindDeposit, "FAILED", "Invalid response. Please try again.", types.SeverityError},
		{"withdrawal failed", KindWithdrawal, "", "Withdrawal failed. Funds returned to wallet.", types.SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPollerFixture(func(time.Duration, int) (Transaction, error) {
				return Transaction{ID: 9, Status: StatusFailed, FinalState: tt.final}, nil
			})
			h := f.poller.Watch(context.Background(), WatchRequest{TransactionID: 9, Kind: tt.kind, Amount: decimal.NewFromInt(100)})
			drive(t, f.clock, h, time.Second)

			result := h.Result()
			assert.Equal(t, PhaseFailed, result.Phase)
			assert.True(t, apperrors.IsTerminalFailure(result.Err()))
			assert.Equal(t, tt.message, result.Notice.Message)
			assert.Equal(t, tt.severity, result.Notice.Severity)
			assert.Equal(t, int32(1), f.wallet.calls.Load())
		})
	}
}

func TestCancelSuppressesLaterCommits(t *testing.T) {
	f := newPollerFixture(func(elapsed time.Duration, _ int) (Transaction, error) {
		if elapsed >= 3*time.Second {
			return Transaction{ID: 9, Status: StatusSuccess}, nil
		}
		return pending()
	})
	var obs observations

	h := f.poller.Watch(context.Background(), WatchRequest{TransactionID: 9, Kind: KindDeposit, OnObservation: obs.record})
	require.NoError(t, f.clock.BlockUntilContext(context.Background(), 2))
	h.Cancel()
	seen := len(obs.phases())

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled watch did not stop")
	}
	f.clock.Advance(10 * time.Second)

	assert.Len(t, obs.phases(), seen)
	assert.Equal(t, PhaseAborted, h.Result().Phase)
	assert.Len(t, f.fetcher.polls(), 1)
	assert.Zero(t, f.wallet.calls.Load())
	assert.Empty(t, f.publisher.Events())
}

func TestAuthErrorStopsWithoutCommit(t *testing.T) {
	f := newPollerFixture(func(time.Duration, int) (Transaction, error) {
		return Transaction{}, apperrors.Auth("Your session has expired. Please log in again.")
	})
	var obs observations

	h := f.poller.Watch(context.Background(), WatchRequest{TransactionID: 9, Kind: KindDeposit, OnObservation: obs.record})
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on auth error")
	}

	assert.Equal(t, []Phase{PhaseSubmitted, PhasePolling}, obs.phases())
	assert.Equal(t, PhaseAborted, h.Result().Phase)
	assert.Nil(t, h.Result().Notice)
	assert.Zero(t, f.wallet.calls.Load())
}

func TestKindAndAmountFromStatusResponse(t *testing.T) {
	f := newPollerFixture(func(time.Duration, int) (Transaction, error) {
		return Transaction{ID: 9, Kind: KindDeposit, Amount: decimal.RequireFromString("250.00"), Status: StatusSuccess}, nil
	})

	h := f.poller.Watch(context.Background(), WatchRequest{TransactionID: 9})
	drive(t, f.clock, h, time.Second)

	result := h.Result()
	assert.Equal(t, KindDeposit, result.Kind)
	assert.Equal(t, "Deposit of KES 250 successful! Your wallet has been updated.", result.Notice.Message)
}
