// Package wallet is the client-side projection of the player's balances.
package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vanillake254/BAHATI-YANGU/httpclient"
	"github.com/vanillake254/BAHATI-YANGU/logging"
)

const (
	pathWallet       = "/api/wallet/me/"
	pathTransactions = "/api/transactions/"
)

// Requester performs an authenticated call; session.Manager satisfies it
type Requester interface {
	Request(ctx context.Context, req httpclient.Request, dest interface{}) error
}

// Wallet mirrors GET /api/wallet/me/
type Wallet struct {
	Balance            decimal.Decimal `json:"balance"`
	BonusBalance       decimal.Decimal `json:"bonus_balance"`
	HasMadeRealDeposit bool            `json:"has_made_real_deposit"`
}

// DisplayBalance is the single number shown to the player: the bonus stops
// counting once a real deposit has been made.
func (w Wallet) DisplayBalance() decimal.Decimal {
	if w.HasMadeRealDeposit {
		return w.Balance
	}
	return w.Balance.Add(w.BonusBalance)
}

// Transaction is one row of GET /api/transactions/
type Transaction struct {
	ID          int64                  `json:"id"`
	Type        string                 `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Status      string                 `json:"status"`
	ReferenceID string                 `json:"reference_id"`
	Provider    string                 `json:"provider,omitempty"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Projection caches the last wallet fetched from the server. The
// real-deposit flag only ever moves from false to true.
type Projection struct {
	requester Requester
	logger    zerolog.Logger

	mu      sync.RWMutex
	current Wallet
	loaded  bool
	// splitStale is set when a game balance was applied while the bonus
	// still counts; only DisplayBalance is exact until the next refresh
	splitStale bool
}

// NewProjection creates an empty projection
func NewProjection(requester Requester, logger zerolog.Logger) *Projection {
	return &Projection{
		requester: requester,
		logger:    logging.WithComponent(logger, "wallet"),
	}
}

// Refresh fetches the wallet and merges it into the projection
func (p *Projection) Refresh(ctx context.Context) (Wallet, error) {
	var fetched Wallet
	if err := p.requester.Request(ctx, httpclient.Request{Path: pathWallet}, &fetched); err != nil {
		p.logger.Debug().Err(err).Msg("Wallet refresh failed")
		return p.Current(), err
	}
	return p.apply(fetched), nil
}

// ApplyBalance records a balance reported by a game round. Game responses
// carry the display balance only: once a real deposit is made that is the
// cash balance, before it the cash/bonus split is unknown until Reconcile.
func (p *Projection) ApplyBalance(display decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return
	}
	if p.current.HasMadeRealDeposit {
		p.current.Balance = display
		return
	}
	p.current.Balance = display.Sub(p.current.BonusBalance)
	p.splitStale = true
}

// SplitStale reports whether Balance and BonusBalance are approximate
func (p *Projection) SplitStale() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.splitStale
}

// Reconcile refreshes the wallet when a game balance left the split stale
func (p *Projection) Reconcile(ctx context.Context) error {
	if !p.SplitStale() {
		return nil
	}
	_, err := p.Refresh(ctx)
	return err
}

func (p *Projection) apply(fetched Wallet) Wallet {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.HasMadeRealDeposit && !fetched.HasMadeRealDeposit {
		p.logger.Warn().Msg("Server reported no real deposit after one was seen, keeping flag")
		fetched.HasMadeRealDeposit = true
	}
	p.current = fetched
	p.loaded = true
	p.splitStale = false
	return p.current
}

// Current returns the cached wallet
func (p *Projection) Current() Wallet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Loaded reports whether at least one refresh succeeded
func (p *Projection) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// History fetches the player's transaction list, newest first
func (p *Projection) History(ctx context.Context) ([]Transaction, error) {
	var rows []Transaction
	if err := p.requester.Request(ctx, httpclient.Request{Path: pathTransactions}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
