package game

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/vanillake254/BAHATI-YANGU/config"
	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/httpclient"
	"github.com/vanillake254/BAHATI-YANGU/types"
)

const (
	pathWheel = "/api/games/wheel/"
	pathSpin  = "/api/games/spin/"

	// DefaultSpinMode is used when no mode is given
	DefaultSpinMode = "classic"
)

// SpinMode is one wheel mode's stake floor and animation
type SpinMode struct {
	Name       string
	MinStake   decimal.Decimal
	Duration   time.Duration
	ExtraTurns int
}

// Spin is the wheel game. It keeps the wheel layout and the wheel's
// current angle across rounds.
type Spin struct {
	baseVariant
	modes  map[string]SpinMode
	settle time.Duration

	mu       sync.Mutex
	segments []Segment
	rotation float64
}

var (
	_ Variant  = (*Spin)(nil)
	_ Preparer = (*Spin)(nil)
)

// NewSpin creates the wheel variant
func NewSpin(cfg config.GamesConfig) (*Spin, error) {
	src := cfg.SpinModes
	if len(src) == 0 {
		src = config.DefaultSpinModes()
	}

	modes := make(map[string]SpinMode, len(src))
	for name, m := range src {
		if m.Duration <= 0 || m.ExtraTurns < 0 {
			return nil, fmt.Errorf("spin mode %q: duration and extra turns must be positive", name)
		}
		key := strings.ToLower(name)
		modes[key] = SpinMode{Name: key, MinStake: m.MinStake, Duration: m.Duration, ExtraTurns: m.ExtraTurns}
	}

	return &Spin{
		baseVariant: baseVariant{
			kind:           KindSpin,
			failureMessage: "Spin failed.",
		},
		modes:  modes,
		settle: cfg.SpinSettle,
	}, nil
}

// Modes returns the configured modes ordered by minimum stake
func (s *Spin) Modes() []SpinMode {
	modes := lo.Values(s.modes)
	sort.Slice(modes, func(i, j int) bool { return modes[i].MinStake.LessThan(modes[j].MinStake) })
	return modes
}

// Prepare implements Preparer
func (s *Spin) Prepare(ctx context.Context, r Requester) error {
	_, err := s.LoadWheel(ctx, r)
	return err
}

// LoadWheel fetches the ordered segment layout
func (s *Spin) LoadWheel(ctx context.Context, r Requester) ([]Segment, error) {
	var segments []Segment
	if err := r.Request(ctx, httpclient.Request{Path: pathWheel}, &segments); err != nil {
		return nil, err
	}
	s.SetWheel(segments)
	return segments, nil
}

// SetWheel replaces the layout
func (s *Spin) SetWheel(segments []Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append([]Segment(nil), segments...)
}

// Wheel returns the loaded layout
func (s *Spin) Wheel() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Segment(nil), s.segments...)
}

// Rotation returns the wheel's current absolute angle
func (s *Spin) Rotation() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

// Validate implements Variant. The input is the mode name.
func (s *Spin) Validate(stake decimal.Decimal, input string) (Selection, error) {
	name := strings.ToLower(strings.TrimSpace(input))
	if name == "" {
		name = DefaultSpinMode
	}
	mode, ok := s.modes[name]
	if !ok {
		return Selection{}, apperrors.Validation(fmt.Sprintf("Unknown spin mode %q.", input))
	}

	s.mu.Lock()
	loaded := len(s.segments) > 0
	s.mu.Unlock()
	if !loaded {
		return Selection{}, apperrors.Validation("The wheel is still loading. Please try again.")
	}

	if !stake.IsPositive() {
		return Selection{}, apperrors.Validation("Enter a stake amount.")
	}
	if stake.LessThan(mode.MinStake) {
		return Selection{}, apperrors.Validation(fmt.Sprintf("Minimum stake for this mode is KES %s.", mode.MinStake.String()))
	}
	return Selection{Mode: name}, nil
}

type spinResponse struct {
	ResultLabel string          `json:"result_label"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	WinAmount   decimal.Decimal `json:"win_amount"`
	Balance     decimal.Decimal `json:"balance"`
}

// Submit implements Variant
func (s *Spin) Submit(ctx context.Context, r Requester, stake decimal.Decimal, _ Selection) (Outcome, error) {
	var res spinResponse
	err := r.Request(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   pathSpin,
		Body:   map[string]interface{}{"stake": stake},
	}, &res)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Label:      res.ResultLabel,
		Multiplier: res.Multiplier,
		WinAmount:  res.WinAmount,
		Balance:    res.Balance,
		IsWin:      res.WinAmount.IsPositive(),
	}, nil
}

// Present implements Variant. The wheel stops on the segment carrying the
// server's label; a label missing from the layout still spins the mode's
// turns but is reported as not aligned.
func (s *Spin) Present(sel Selection, outcome Outcome) Presentation {
	mode := s.modes[sel.Mode]

	s.mu.Lock()
	defer s.mu.Unlock()

	pres := Presentation{Duration: mode.Duration + s.settle}
	index := lo.IndexOf(lo.Map(s.segments, func(seg Segment, _ int) string { return seg.Label }), outcome.Label)
	if index < 0 {
		s.rotation += float64(mode.ExtraTurns) * 360
		pres.Rotation = s.rotation
		pres.Notice = types.NewNotice(types.SeverityWarning,
			fmt.Sprintf("Result: %s. The wheel display is out of date; your result is correct.", outcome.Label))
		return pres
	}

	s.rotation = TargetRotation(s.rotation, index, len(s.segments), mode.ExtraTurns)
	pres.Rotation = s.rotation
	pres.Aligned = true
	pres.Notice = resultNotice(outcome)
	return pres
}
