package payment

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/logging"
)

// Settlement ties submission to tracking for the deposit and cash-out
// flows and for the payment-status view.
type Settlement struct {
	client *Client
	poller *Poller
	logger zerolog.Logger
}

// NewSettlement creates the settlement flow
func NewSettlement(client *Client, poller *Poller, logger zerolog.Logger) *Settlement {
	return &Settlement{
		client: client,
		poller: poller,
		logger: logging.WithComponent(logger, "settlement"),
	}
}

// Deposit validates, submits and starts watching a deposit
func (s *Settlement) Deposit(ctx context.Context, amount decimal.Decimal, onObservation func(Observation)) (*Handle, error) {
	submittedAt := s.poller.clock.Now()
	id, err := s.client.Deposit(ctx, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("transaction_id", id).Str("amount", amount.String()).Msg("Deposit submitted")
	return s.poller.Watch(ctx, WatchRequest{
		TransactionID: id,
		Kind:          KindDeposit,
		Amount:        amount,
		SubmittedAt:   submittedAt,
		OnObservation: onObservation,
	}), nil
}

// Withdraw validates, submits and starts watching a cash-out
func (s *Settlement) Withdraw(ctx context.Context, amount decimal.Decimal, onObservation func(Observation)) (*Handle, error) {
	submittedAt := s.poller.clock.Now()
	id, err := s.client.Withdraw(ctx, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("transaction_id", id).Str("amount", amount.String()).Msg("Withdrawal submitted")
	return s.poller.Watch(ctx, WatchRequest{
		TransactionID: id,
		Kind:          KindWithdrawal,
		Amount:        amount,
		SubmittedAt:   submittedAt,
		OnObservation: onObservation,
	}), nil
}

// WatchExisting follows a transaction id handed over by navigation. The
// deadline starts now since the submission time is unknown.
func (s *Settlement) WatchExisting(ctx context.Context, rawID string, onObservation func(Observation)) (*Handle, error) {
	id, err := ParseTransactionID(rawID)
	if err != nil {
		return nil, err
	}
	return s.poller.Watch(ctx, WatchRequest{
		TransactionID: id,
		OnObservation: onObservation,
	}), nil
}

// ParseTransactionID validates a transaction id taken from user input
func ParseTransactionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("Missing transaction id.")
	}
	return id, nil
}
