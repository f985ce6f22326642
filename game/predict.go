package game

import (
	"context"
	"net/http"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/vanillake254/BAHATI-YANGU/config"
	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/httpclient"
)

const pathPredict = "/api/games/predict/"

// Colours a prediction can name
var Colours = []string{"red", "black"}

// Predict is the colour-prediction game
type Predict struct {
	baseVariant
}

var _ Variant = (*Predict)(nil)

// NewPredict creates the predict variant
func NewPredict(cfg config.GamesConfig) *Predict {
	return &Predict{baseVariant{
		kind:           KindPredict,
		minStake:       cfg.PredictMinStake,
		revealDelay:    cfg.PredictDelay,
		failureMessage: "Prediction failed.",
	}}
}

// Validate implements Variant
func (p *Predict) Validate(stake decimal.Decimal, input string) (Selection, error) {
	colour := strings.ToLower(strings.TrimSpace(input))
	if !lo.Contains(Colours, colour) {
		return Selection{}, apperrors.Validation("Choose red or black to place a prediction.")
	}
	if err := p.validateStake(stake, p.minStake); err != nil {
		return Selection{}, err
	}
	return Selection{Choice: colour}, nil
}

type predictResponse struct {
	Outcome    string          `json:"outcome"`
	IsWin      bool            `json:"is_win"`
	Multiplier decimal.Decimal `json:"multiplier"`
	WinAmount  decimal.Decimal `json:"win_amount"`
	Balance    decimal.Decimal `json:"balance"`
}

// Submit implements Variant
func (p *Predict) Submit(ctx context.Context, r Requester, stake decimal.Decimal, sel Selection) (Outcome, error) {
	var res predictResponse
	err := r.Request(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   pathPredict,
		Body:   map[string]interface{}{"stake": stake, "prediction": sel.Choice},
	}, &res)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Label:      res.Outcome,
		Multiplier: res.Multiplier,
		WinAmount:  res.WinAmount,
		Balance:    res.Balance,
		IsWin:      res.IsWin,
	}, nil
}
