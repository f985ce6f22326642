package sandbox

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/game"
)

func TestDefaultWheel(t *testing.T) {
	wheel := DefaultWheel()
	require.Len(t, wheel, 12)
	assert.Equal(t, "-1.5x", wheel[0].Label)
	assert.Equal(t, "10x", wheel[11].Label)

	high := lo.Filter(wheel, func(s game.Segment, _ int) bool { return s.IsHighPayout })
	assert.Equal(t, []string{"5x", "10x"}, lo.Map(high, func(s game.Segment, _ int) string { return s.Label }))
	assert.InDelta(t, 1.0, lo.SumBy(wheel, func(s game.Segment) float64 { return s.Probability }), 0.001)
}

func TestSameSeedSameOutcomes(t *testing.T) {
	labels := func() []string {
		l, id := newTestLedger(t, 1)
		l.Credit(id, dec("10000"))
		g := NewGames(l, nil, 42)
		var out []string
		for i := 0; i < 20; i++ {
			res, err := g.Spin(id, dec("20"))
			require.NoError(t, err)
			out = append(out, res.Label)
		}
		return out
	}
	assert.Equal(t, labels(), labels())
}

func TestSpinNegativeMultiplierCostsMore(t *testing.T) {
	l, id := newTestLedger(t, 1)
	wheel := []game.Segment{{Label: "-1.5x", Multiplier: dec("-1.5"), Probability: 1}}
	g := NewGames(l, wheel, 1)

	res, err := g.Spin(id, dec("20"))
	require.NoError(t, err)
	assert.Equal(t, "-1.5x", res.Label)
	assert.True(t, res.WinAmount.IsZero())
	assert.False(t, res.IsWin())
	assert.True(t, res.Wallet.BonusBalance.Equal(dec("70")), "bonus pays first, got %s", res.Wallet.BonusBalance)
	assert.True(t, res.Wallet.DisplayBalance().Equal(dec("70")))
}

func TestSpinWinStaysInBonusForWelcomePlayers(t *testing.T) {
	l, id := newTestLedger(t, 1)
	g := NewGames(l, []game.Segment{{Label: "2x", Multiplier: dec("2"), Probability: 1}}, 1)

	res, err := g.Spin(id, dec("50"))
	require.NoError(t, err)
	assert.True(t, res.WinAmount.Equal(dec("100")))
	assert.True(t, res.Wallet.BonusBalance.Equal(dec("150")))
	assert.True(t, res.Wallet.Balance.IsZero())
}

func TestSpinInsufficientBalance(t *testing.T) {
	l, id := newTestLedger(t, 1)
	g := NewGames(l, nil, 1)

	_, err := g.Spin(id, dec("101"))
	assert.Equal(t, "Insufficient balance.", apperrors.UserMessage(err, ""))

	w, _ := l.Wallet(id)
	assert.True(t, w.BonusBalance.Equal(dec("100")), "a rejected stake takes nothing")
}

func TestPredict(t *testing.T) {
	l, id := newTestLedger(t, 1)
	g := NewGames(l, nil, 7)

	res, err := g.Predict(id, dec("10"), " RED ")
	require.NoError(t, err)
	assert.Contains(t, game.Colours, res.Label)
	if res.Label == "red" {
		assert.True(t, res.WinAmount.Equal(dec("18")))
	} else {
		assert.True(t, res.WinAmount.IsZero())
	}

	_, err = g.Predict(id, dec("10"), "green")
	assert.Equal(t, "Prediction must be 'red' or 'black'.", apperrors.UserMessage(err, ""))
	_, err = g.Predict(id, dec("10"), "")
	assert.Equal(t, "Prediction is required.", apperrors.UserMessage(err, ""))
}

func TestPickBox(t *testing.T) {
	l, id := newTestLedger(t, 1)
	g := NewGames(l, nil, 3)

	res, err := g.PickBox(id, dec("20"), "right")
	require.NoError(t, err)
	assert.Contains(t, []string{"X0", "X1", "X2", "X3"}, res.Label)
	assert.True(t, res.WinAmount.Equal(dec("20").Mul(res.Multiplier)))

	_, err = g.PickBox(id, dec("19"), "right")
	assert.Equal(t, "Minimum stake for Pick a Box is KES 20.", apperrors.UserMessage(err, ""))
	_, err = g.PickBox(id, dec("20"), "top")
	assert.Equal(t, "Choice must be 'left', 'middle' or 'right'.", apperrors.UserMessage(err, ""))
}
