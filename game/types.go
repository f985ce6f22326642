package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/types"
)

// Kind identifies a game
type Kind string

const (
	KindSpin    Kind = "SPIN"
	KindPredict Kind = "PREDICT"
	KindPickBox Kind = "PICKBOX"
)

// ParseKind accepts a game name in any case, with "pick-box" as an alias
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "")) {
	case string(KindSpin):
		return KindSpin, nil
	case string(KindPredict):
		return KindPredict, nil
	case string(KindPickBox):
		return KindPickBox, nil
	}
	return "", apperrors.Validation(fmt.Sprintf("Unknown game %q.", s))
}

// State is the reveal state of a round
type State string

const (
	StateIdle       State = "IDLE"
	StateSubmitting State = "SUBMITTING"
	StateAnimating  State = "ANIMATING"
	StateRevealed   State = "REVEALED"
	StateError      State = "ERROR"
)

// Busy reports whether the round still owns the game
func (s State) Busy() bool {
	return s == StateSubmitting || s == StateAnimating
}

// Terminal reports whether the round is finished
func (s State) Terminal() bool {
	return s == StateRevealed || s == StateError
}

// Outcome is the server's authoritative result. It is captured once at
// submission and never changed afterwards.
type Outcome struct {
	Label      string          `json:"label"`
	Multiplier decimal.Decimal `json:"multiplier"`
	WinAmount  decimal.Decimal `json:"win_amount"`
	Balance    decimal.Decimal `json:"balance"`
	IsWin      bool            `json:"is_win"`
}

// Segment is one slice of the wheel, in server order
type Segment struct {
	Label        string          `json:"label"`
	Color        string          `json:"color"`
	Probability  float64         `json:"probability"`
	Multiplier   decimal.Decimal `json:"multiplier"`
	IsHighPayout bool            `json:"is_high_payout"`
}

// Selection is the validated player input for one round
type Selection struct {
	// Choice is the colour or box; empty for the wheel
	Choice string `json:"choice,omitempty"`
	// Mode is the wheel mode; empty for other games
	Mode string `json:"mode,omitempty"`
}

// Round is a snapshot of one play
type Round struct {
	ID        string          `json:"id,omitempty"`
	Kind      Kind            `json:"kind"`
	Stake     decimal.Decimal `json:"stake"`
	Selection Selection       `json:"selection"`
	State     State           `json:"state"`
	Outcome   *Outcome        `json:"outcome,omitempty"`
	// Rotation is the wheel's absolute target angle in degrees
	Rotation float64 `json:"rotation,omitempty"`
	// Aligned is false when the wheel could not be stopped on the
	// server's label
	Aligned   bool          `json:"aligned"`
	Notice    *types.Notice `json:"notice,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	RevealAt  time.Time     `json:"reveal_at,omitempty"`
}

func resultNotice(o Outcome) *types.Notice {
	if o.IsWin {
		return types.NewNotice(types.SeveritySuccess,
			fmt.Sprintf("%s: you won KES %s!", o.Label, o.WinAmount.StringFixed(2)))
	}
	return types.NewNotice(types.SeverityInfo, fmt.Sprintf("%s: no win this time.", o.Label))
}
