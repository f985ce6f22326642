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

const pathPickBox = "/api/games/pick-box/"

// Boxes a player can pick
var Boxes = []string{"left", "middle", "right"}

// PickBox is the three-box game
type PickBox struct {
	baseVariant
}

var _ Variant = (*PickBox)(nil)

// NewPickBox creates the pick-a-box variant
func NewPickBox(cfg config.GamesConfig) *PickBox {
	return &PickBox{baseVariant{
		kind:           KindPickBox,
		minStake:       cfg.PickBoxMinStake,
		revealDelay:    cfg.PickBoxDelay,
		failureMessage: "Game failed.",
	}}
}

// Validate implements Variant
func (p *PickBox) Validate(stake decimal.Decimal, input string) (Selection, error) {
	if err := p.validateStake(stake, p.minStake); err != nil {
		return Selection{}, err
	}
	box := strings.ToLower(strings.TrimSpace(input))
	if !lo.Contains(Boxes, box) {
		return Selection{}, apperrors.Validation("Choose a box first.")
	}
	return Selection{Choice: box}, nil
}

type pickBoxResponse struct {
	RevealedLabel string          `json:"revealed_label"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	WinAmount     decimal.Decimal `json:"win_amount"`
	Balance       decimal.Decimal `json:"balance"`
}

// Submit implements Variant
func (p *PickBox) Submit(ctx context.Context, r Requester, stake decimal.Decimal, sel Selection) (Outcome, error) {
	var res pickBoxResponse
	err := r.Request(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   pathPickBox,
		Body:   map[string]interface{}{"stake": stake, "choice": sel.Choice},
	}, &res)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Label:      res.RevealedLabel,
		Multiplier: res.Multiplier,
		WinAmount:  res.WinAmount,
		Balance:    res.Balance,
		IsWin:      res.WinAmount.IsPositive(),
	}, nil
}
