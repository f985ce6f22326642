package sandbox

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/game"
	"github.com/vanillake254/BAHATI-YANGU/wallet"
)

// Game names recorded on ledger rows
const (
	gameSpin    = "SPIN"
	gamePredict = "PREDICT"
	gamePickBox = "PICKBOX"
)

var (
	predictMultiplier = decimal.RequireFromString("1.8")
	pickBoxMinStake   = decimal.NewFromInt(20)
)

type weighted struct {
	label      string
	multiplier decimal.Decimal
	weight     float64
}

var (
	pickBoxOptions = []weighted{
		{"X0", decimal.Zero, 0.40},
		{"X1", decimal.NewFromInt(1), 0.34},
		{"X2", decimal.NewFromInt(2), 0.16},
		{"X3", decimal.NewFromInt(3), 0.10},
	}
	pickBoxWelcomeOptions = []weighted{
		{"X0", decimal.Zero, 0.30},
		{"X1", decimal.NewFromInt(1), 0.34},
		{"X2", decimal.NewFromInt(2), 0.22},
		{"X3", decimal.NewFromInt(3), 0.14},
	}
)

// DefaultWheel is the wheel layout served by GET /api/games/wheel/
func DefaultWheel() []game.Segment {
	seg := func(label, mult, color string, p float64, high bool) game.Segment {
		return game.Segment{
			Label:        label,
			Color:        color,
			Probability:  p,
			Multiplier:   decimal.RequireFromString(mult),
			IsHighPayout: high,
		}
	}
	return []game.Segment{
		seg("-1.5x", "-1.5", "#020617", 0.08, false),
		seg("-1x", "-1", "#0f172a", 0.21, false),
		seg("-0.5x", "-0.5", "#111827", 0.17, false),
		seg("0x", "0", "#020617", 0.19, false),
		seg("0.5x", "0.5", "#38bdf8", 0.11, false),
		seg("1x", "1", "#22c55e", 0.08, false),
		seg("1.5x", "1.5", "#4ade80", 0.08, false),
		seg("2x", "2", "#6366f1", 0.06, false),
		seg("2.5x", "2.5", "#7c3aed", 0.03, false),
		seg("3x", "3", "#06b6d4", 0.02, false),
		seg("5x", "5", "#ec4899", 0.025, true),
		seg("10x", "10", "#f97316", 0.015, true),
	}
}

// Result is the settled outcome of one play
type Result struct {
	Label      string
	Multiplier decimal.Decimal
	WinAmount  decimal.Decimal
	Wallet     wallet.Wallet
}

// IsWin reports whether the play paid anything
func (r Result) IsWin() bool {
	return r.WinAmount.IsPositive()
}

// Games draws outcomes from a seeded source and books them on the ledger
type Games struct {
	mu     sync.Mutex
	rng    *rand.Rand
	wheel  []game.Segment
	ledger *Ledger
}

// NewGames creates the game engine. The same seed yields the same sequence
// of outcomes.
func NewGames(ledger *Ledger, wheel []game.Segment, seed int64) *Games {
	if len(wheel) == 0 {
		wheel = DefaultWheel()
	}
	return &Games{
		rng:    rand.New(rand.NewSource(seed)),
		wheel:  wheel,
		ledger: ledger,
	}
}

// Wheel returns the segment layout in display order
func (g *Games) Wheel() []game.Segment {
	return append([]game.Segment(nil), g.wheel...)
}

func (g *Games) draw() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

func (g *Games) pick(options []weighted) weighted {
	total := lo.SumBy(options, func(o weighted) float64 { return max0(o.weight) })
	r := g.draw() * total
	cumulative := 0.0
	for _, o := range options {
		cumulative += max0(o.weight)
		if r <= cumulative {
			return o
		}
	}
	return options[len(options)-1]
}

// welcome reports whether the player is still on the signup bonus, which
// tilts every game slightly in their favour
func (g *Games) welcome(userID int64) bool {
	w, ok := g.ledger.Wallet(userID)
	return ok && !w.HasMadeRealDeposit
}

// Spin plays the wheel. Multipliers below -1 cost more than the stake.
func (g *Games) Spin(userID int64, stake decimal.Decimal) (Result, error) {
	if !stake.IsPositive() {
		return Result{}, apperrors.New(apperrors.ErrRejected, "Stake must be greater than zero.")
	}

	welcome := g.welcome(userID)
	options := lo.Map(g.wheel, func(s game.Segment, _ int) weighted {
		w := weighted{label: s.Label, multiplier: s.Multiplier, weight: s.Probability}
		if welcome {
			switch {
			case s.Multiplier.GreaterThanOrEqual(decimal.NewFromInt(1)):
				w.weight *= 1.15
			case s.Multiplier.IsPositive():
				w.weight *= 1.05
			default:
				w.weight *= 0.75
			}
		}
		return w
	})
	chosen := g.pick(options)

	total := stake
	if loss := chosen.multiplier.Neg(); loss.GreaterThan(decimal.NewFromInt(1)) {
		total = stake.Mul(loss).Round(2)
	}
	return g.settle(userID, gameSpin, stake, total, chosen, true)
}

// Predict plays red or black
func (g *Games) Predict(userID int64, stake decimal.Decimal, prediction string) (Result, error) {
	if !stake.IsPositive() {
		return Result{}, apperrors.New(apperrors.ErrRejected, "Stake must be greater than zero.")
	}
	prediction = strings.ToLower(strings.TrimSpace(prediction))
	if prediction == "" {
		return Result{}, apperrors.New(apperrors.ErrRejected, "Prediction is required.")
	}
	if !lo.Contains(game.Colours, prediction) {
		return Result{}, apperrors.New(apperrors.ErrRejected, "Prediction must be 'red' or 'black'.")
	}

	matchChance := 0.5
	if g.welcome(userID) {
		matchChance = 0.6
	}
	outcome := prediction
	if g.draw() >= matchChance {
		outcome = lo.Without(game.Colours, prediction)[0]
	}

	chosen := weighted{label: outcome, multiplier: decimal.Zero}
	if outcome == prediction {
		chosen.multiplier = predictMultiplier
	}
	return g.settle(userID, gamePredict, stake, stake, chosen, false)
}

// PickBox opens one of three boxes
func (g *Games) PickBox(userID int64, stake decimal.Decimal, choice string) (Result, error) {
	if !stake.IsPositive() {
		return Result{}, apperrors.New(apperrors.ErrRejected, "Stake must be greater than zero.")
	}
	if stake.LessThan(pickBoxMinStake) {
		return Result{}, apperrors.New(apperrors.ErrRejected, "Minimum stake for Pick a Box is KES 20.")
	}
	choice = strings.ToLower(strings.TrimSpace(choice))
	if choice == "" {
		return Result{}, apperrors.New(apperrors.ErrRejected, "Choice is required.")
	}
	if !lo.Contains(game.Boxes, choice) {
		return Result{}, apperrors.New(apperrors.ErrRejected, "Choice must be 'left', 'middle' or 'right'.")
	}

	options := pickBoxOptions
	if g.welcome(userID) {
		options = pickBoxWelcomeOptions
	}
	return g.settle(userID, gamePickBox, stake, stake, g.pick(options), false)
}

func (g *Games) settle(userID int64, name string, stake, total decimal.Decimal, chosen weighted, winToBonus bool) (Result, error) {
	if _, err := g.ledger.stake(userID, total, name); err != nil {
		return Result{}, err
	}

	win := decimal.Zero
	if chosen.multiplier.IsPositive() {
		win = stake.Mul(chosen.multiplier).Round(2)
	}
	w := g.ledger.pay(userID, win, name, winToBonus)

	return Result{
		Label:      chosen.label,
		Multiplier: chosen.multiplier,
		WinAmount:  win,
		Wallet:     w,
	}, nil
}

func max0(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
