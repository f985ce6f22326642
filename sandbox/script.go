package sandbox

import (
	"github.com/shopspring/decimal"

	"github.com/vanillake254/BAHATI-YANGU/payment"
)

// Outcome is how a pending payment ends
type Outcome string

const (
	OutcomeSuccess   Outcome = "SUCCESS"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeCancelled Outcome = "CANCELED"
	// OutcomePending never settles, which lets a client hit its deadline
	OutcomePending Outcome = "PENDING"
)

// Script decides the outcome of a payment when it is submitted
type Script func(kind payment.Kind, amount decimal.Decimal) Outcome

// Amounts the default script treats specially
var (
	FailAmount    = decimal.NewFromInt(400)
	CancelAmount  = decimal.NewFromInt(450)
	PendingAmount = decimal.NewFromInt(950)
)

// DefaultScript settles everything successfully except three magic
// amounts: 400 fails, 450 is cancelled by the player, 950 stays pending.
func DefaultScript() Script {
	return func(_ payment.Kind, amount decimal.Decimal) Outcome {
		switch {
		case amount.Equal(FailAmount):
			return OutcomeFailed
		case amount.Equal(CancelAmount):
			return OutcomeCancelled
		case amount.Equal(PendingAmount):
			return OutcomePending
		default:
			return OutcomeSuccess
		}
	}
}

// FixedScript ends every payment the same way
func FixedScript(outcome Outcome) Script {
	return func(payment.Kind, decimal.Decimal) Outcome { return outcome }
}
