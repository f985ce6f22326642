// Package payment submits deposits and withdrawals and tracks them to a
// terminal state within a hard deadline.
package payment

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/httpclient"
)

const (
	pathDeposit  = "/api/payments/deposit/"
	pathWithdraw = "/api/payments/withdraw/"
	pathStatus   = "/api/payments/status/%d/"
)

var (
	// MinDeposit is the smallest deposit the server accepts
	MinDeposit = decimal.NewFromInt(50)
	// MinWithdrawal is the smallest cash-out
	MinWithdrawal = decimal.NewFromInt(100)
	// WithdrawalStep is the increment cash-outs must be a multiple of
	WithdrawalStep = decimal.NewFromInt(50)
)

// Requester performs an authenticated call; session.Manager satisfies it
type Requester interface {
	Request(ctx context.Context, req httpclient.Request, dest interface{}) error
}

// Client wraps the payment endpoints
type Client struct {
	requester Requester
}

// NewClient creates a payment client
func NewClient(requester Requester) *Client {
	return &Client{requester: requester}
}

type amountBody struct {
	Amount decimal.Decimal `json:"amount"`
}

type submitResponse struct {
	TransactionID int64  `json:"transaction_id"`
	Status        Status `json:"status,omitempty"`
}

// ValidateDeposit checks a deposit amount locally
func ValidateDeposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.Validation("Amount must be greater than zero.")
	}
	if amount.LessThan(MinDeposit) {
		return apperrors.Validation(fmt.Sprintf("Minimum deposit is KES %s.", MinDeposit.String()))
	}
	return nil
}

// ValidateWithdrawal checks a cash-out amount locally: at least 100 and a
// multiple of 50.
func ValidateWithdrawal(amount decimal.Decimal) error {
	if amount.LessThan(MinWithdrawal) || !amount.Mod(WithdrawalStep).IsZero() {
		return apperrors.Validation("Withdrawal amount must be KES 100 and then in increments of KES 50 (100, 150, 200, ...).")
	}
	return nil
}

// Deposit starts an M-Pesa STK push and returns the transaction id
func (c *Client) Deposit(ctx context.Context, amount decimal.Decimal) (int64, error) {
	if err := ValidateDeposit(amount); err != nil {
		return 0, err
	}
	return c.submit(ctx, pathDeposit, amount)
}

// Withdraw starts a cash-out and returns the transaction id
func (c *Client) Withdraw(ctx context.Context, amount decimal.Decimal) (int64, error) {
	if err := ValidateWithdrawal(amount); err != nil {
		return 0, err
	}
	return c.submit(ctx, pathWithdraw, amount)
}

func (c *Client) submit(ctx context.Context, path string, amount decimal.Decimal) (int64, error) {
	var res submitResponse
	if err := c.requester.Request(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   amountBody{Amount: amount},
	}, &res); err != nil {
		return 0, err
	}
	if res.TransactionID <= 0 {
		return 0, apperrors.NewWithDebug(apperrors.ErrTransport, "Unexpected response from server.", "missing transaction_id")
	}
	return res.TransactionID, nil
}

// Status fetches the settlement status of one transaction
func (c *Client) Status(ctx context.Context, id int64) (Transaction, error) {
	var tx Transaction
	err := c.requester.Request(ctx, httpclient.Request{Path: fmt.Sprintf(pathStatus, id)}, &tx)
	return tx, err
}
