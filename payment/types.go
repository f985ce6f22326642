package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/types"
)

// Kind is the direction of a money movement
type Kind string

const (
	KindDeposit    Kind = "DEPOSIT"
	KindWithdrawal Kind = "WITHDRAWAL"
)

// Status is the server-side settlement status
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// finalStateCancelled is the provider state for a player who dismissed the
// M-Pesa prompt
const finalStateCancelled = "CANCELED"

// Transaction mirrors GET /api/payments/status/{id}/
type Transaction struct {
	ID          int64           `json:"id"`
	Kind        Kind            `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Status      Status          `json:"status"`
	FinalState  string          `json:"final_state,omitempty"`
	ReferenceID string          `json:"reference_id,omitempty"`
}

// Terminal reports whether polling can stop
func (t Transaction) Terminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}

// Cancelled reports whether the player dismissed the payment prompt
func (t Transaction) Cancelled() bool {
	return t.FinalState == finalStateCancelled
}

// Phase is the poller's state
type Phase string

const (
	PhaseSubmitted Phase = "SUBMITTED"
	PhasePolling   Phase = "POLLING"
	PhaseSuccess   Phase = "SUCCESS"
	PhaseFailed    Phase = "FAILED"
	PhaseTimeout   Phase = "TIMEOUT"
	// PhaseAborted ends a watch without a user-visible result: the view was
	// torn down or the session went away.
	PhaseAborted Phase = "ABORTED"
)

// Terminal reports whether the phase is final
func (p Phase) Terminal() bool {
	switch p {
	case PhaseSuccess, PhaseFailed, PhaseTimeout, PhaseAborted:
		return true
	}
	return false
}

// Observation is one snapshot of a watched transaction
type Observation struct {
	TransactionID int64           `json:"transaction_id"`
	Kind          Kind            `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Phase         Phase           `json:"phase"`
	Transaction   *Transaction    `json:"transaction,omitempty"`
	Notice        *types.Notice   `json:"notice,omitempty"`
	Polls         int             `json:"polls"`
	Elapsed       time.Duration   `json:"elapsed"`
}

// Err maps a terminal observation onto the error taxonomy; SUCCESS and
// non-terminal phases return nil.
func (o Observation) Err() error {
	msg := ""
	if o.Notice != nil {
		msg = o.Notice.Message
	}
	switch o.Phase {
	case PhaseFailed:
		return apperrors.New(apperrors.ErrTerminalFailure, msg)
	case PhaseTimeout:
		return apperrors.New(apperrors.ErrTimeout, msg)
	case PhaseAborted:
		return apperrors.New(apperrors.ErrAuth, "Payment tracking stopped.")
	}
	return nil
}

func successNotice(kind Kind, amount decimal.Decimal, dismissAfter time.Duration) *types.Notice {
	if kind == KindWithdrawal {
		return types.NewToast(types.SeveritySuccess,
			fmt.Sprintf("Cash out of KES %s successful! Funds sent to M-Pesa.", amount.String()), dismissAfter)
	}
	return types.NewToast(types.SeveritySuccess,
		fmt.Sprintf("Deposit of KES %s successful! Your wallet has been updated.", amount.String()), dismissAfter)
}

func failureNotice(kind Kind, tx Transaction) *types.Notice {
	if kind == KindWithdrawal {
		if tx.Cancelled() {
			return types.NewNotice(types.SeverityWarning, "Withdrawal cancelled. Funds returned to wallet.")
		}
		return types.NewNotice(types.SeverityError, "Withdrawal failed. Funds returned to wallet.")
	}
	if tx.Cancelled() {
		return types.NewNotice(types.SeverityWarning, "User cancelled.")
	}
	return types.NewNotice(types.SeverityError, "Invalid response. Please try again.")
}

func timeoutNotice(kind Kind) *types.Notice {
	if kind == KindWithdrawal {
		return types.NewNotice(types.SeverityError, "Withdrawal timed out. Check your M-Pesa or try again.")
	}
	return types.NewNotice(types.SeverityError,
		"Timed out. If you did not enter your M-Pesa PIN within 1 minute, the request was cancelled. Check your M-Pesa app.")
}
