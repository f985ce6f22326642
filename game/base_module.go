package game

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
)

// baseVariant carries what every game shares; variants embed it and
// override what differs.
type baseVariant struct {
	kind           Kind
	minStake       decimal.Decimal
	revealDelay    time.Duration
	failureMessage string
}

// Kind implements Variant
func (b *baseVariant) Kind() Kind {
	return b.kind
}

// FailureMessage implements Variant
func (b *baseVariant) FailureMessage() string {
	return b.failureMessage
}

// validateStake requires a positive stake of at least the minimum
func (b *baseVariant) validateStake(stake decimal.Decimal, minStake decimal.Decimal) error {
	if !stake.IsPositive() {
		return apperrors.Validation("Enter a stake amount.")
	}
	if stake.LessThan(minStake) {
		return apperrors.Validation(fmt.Sprintf("Minimum stake is KES %s.", minStake.String()))
	}
	return nil
}

// Present implements Variant for games with a fixed reveal delay
func (b *baseVariant) Present(_ Selection, outcome Outcome) Presentation {
	return Presentation{
		Duration: b.revealDelay,
		Aligned:  true,
		Notice:   resultNotice(outcome),
	}
}
