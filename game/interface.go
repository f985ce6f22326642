// Package game drives one round of a game: local validation, a single
// authoritative submission, then a timed reveal that never changes the
// server's result.
package game

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/vanillake254/BAHATI-YANGU/config"
	"github.com/vanillake254/BAHATI-YANGU/httpclient"
	"github.com/vanillake254/BAHATI-YANGU/types"
)

// Requester performs an authenticated call; session.Manager satisfies it
type Requester interface {
	Request(ctx context.Context, req httpclient.Request, dest interface{}) error
}

// Presentation is how a frozen outcome is revealed
type Presentation struct {
	Duration time.Duration
	Rotation float64
	Aligned  bool
	Notice   *types.Notice
}

// Variant is one game's rules
//
// Flow: Orchestrator.Play -> Validate -> Submit -> Present -> reveal timer
type Variant interface {
	// Kind returns the game this variant plays
	Kind() Kind

	// Validate checks the stake and raw input locally; nothing is sent
	// when it fails.
	Validate(stake decimal.Decimal, input string) (Selection, error)

	// Submit posts the round and returns the server's outcome
	Submit(ctx context.Context, r Requester, stake decimal.Decimal, sel Selection) (Outcome, error)

	// Present derives the reveal from the outcome. It may update
	// presentation state kept between rounds, such as the wheel angle.
	Present(sel Selection, outcome Outcome) Presentation

	// FailureMessage is shown when the server gives no detail
	FailureMessage() string
}

// Preparer is implemented by variants that need data before the first
// round, such as the wheel layout.
type Preparer interface {
	Prepare(ctx context.Context, r Requester) error
}

// VariantFactory creates a variant from the games configuration
type VariantFactory func(cfg config.GamesConfig) (Variant, error)

// Registry holds registered variant factories
type Registry struct {
	factories map[Kind]VariantFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Kind]VariantFactory),
	}
}

// DefaultRegistry returns a registry with the three built-in games
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindSpin, func(cfg config.GamesConfig) (Variant, error) { return NewSpin(cfg) })
	r.Register(KindPredict, func(cfg config.GamesConfig) (Variant, error) { return NewPredict(cfg), nil })
	r.Register(KindPickBox, func(cfg config.GamesConfig) (Variant, error) { return NewPickBox(cfg), nil })
	return r
}

// Register registers a factory for a game kind
func (r *Registry) Register(kind Kind, factory VariantFactory) {
	r.factories[kind] = factory
}

// Get returns the factory for a game kind
func (r *Registry) Get(kind Kind) (VariantFactory, bool) {
	factory, ok := r.factories[kind]
	return factory, ok
}

// GetAll returns all registered kinds, sorted
func (r *Registry) GetAll() []Kind {
	kinds := lo.Keys(r.factories)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// New builds the variant registered for kind
func (r *Registry) New(kind Kind, cfg config.GamesConfig) (Variant, error) {
	factory, ok := r.Get(kind)
	if !ok {
		return nil, fmt.Errorf("game %s is not registered", kind)
	}
	return factory(cfg)
}
