package wire

import (
	"fmt"
	"path/filepath"

	"github.com/google/wire"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/vanillake254/BAHATI-YANGU/config"
	"github.com/vanillake254/BAHATI-YANGU/db/redis"
	"github.com/vanillake254/BAHATI-YANGU/events"
	"github.com/vanillake254/BAHATI-YANGU/events/kafka"
	"github.com/vanillake254/BAHATI-YANGU/game"
	"github.com/vanillake254/BAHATI-YANGU/httpclient"
	"github.com/vanillake254/BAHATI-YANGU/logging"
	"github.com/vanillake254/BAHATI-YANGU/payment"
	"github.com/vanillake254/BAHATI-YANGU/sandbox"
	"github.com/vanillake254/BAHATI-YANGU/session"
	"github.com/vanillake254/BAHATI-YANGU/storage"
	"github.com/vanillake254/BAHATI-YANGU/wallet"
)

// ProvideLogger provides a zerolog.Logger
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Logging)
}

// ProvideClock provides the wall clock
func ProvideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// ProvideRedisClient provides a Redis client
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	return redis.New(cfg.Redis)
}

// ProvideStore opens the durable store selected by session.storage
func ProvideStore(cfg *config.Config) (storage.KV, func(), error) {
	switch cfg.Session.Storage {
	case "memory":
		return storage.NewMemoryKV(), func() {}, nil
	case "redis":
		client, err := ProvideRedisClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewRedisKV(client, "bahati:", 0), func() { _ = client.Close() }, nil
	case "file":
		kv, err := storage.NewFileKV(filepath.Clean(cfg.Session.FilePath))
		if err != nil {
			return nil, nil, err
		}
		return kv, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session storage %q", cfg.Session.Storage)
	}
}

// ProvidePublisher returns a Kafka producer when brokers are configured and
// a no-op publisher otherwise
func ProvidePublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, func(), error) {
	if !cfg.KafkaEnabled() {
		return events.Nop{}, func() {}, nil
	}
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.Topic,
		Logger:    logger,
		WorkerNum: cfg.Kafka.WorkerNum,
	})
	if err != nil {
		return nil, nil, err
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideHTTPClient provides the single client used for the remote authority
func ProvideHTTPClient(cfg *config.Config, logger zerolog.Logger) *httpclient.Client {
	return httpclient.New(httpclient.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logger,
	})
}

// ProvideSessionManager provides the session manager
func ProvideSessionManager(cfg *config.Config, client *httpclient.Client, store storage.KV, clock clockwork.Clock, logger zerolog.Logger) *session.Manager {
	return session.NewManager(session.Options{
		Client:            client,
		Store:             store,
		StorageKey:        cfg.Session.StorageKey,
		InactivityTimeout: cfg.Session.InactivityTimeout,
		Clock:             clock,
		Logger:            logger,
	})
}

// ProvideWallet provides the wallet projection
func ProvideWallet(mgr *session.Manager, logger zerolog.Logger) *wallet.Projection {
	return wallet.NewProjection(mgr, logger)
}

// ProvidePaymentClient provides the payment client
func ProvidePaymentClient(mgr *session.Manager) *payment.Client {
	return payment.NewClient(mgr)
}

// ProvidePoller provides the settlement poller
func ProvidePoller(cfg *config.Config, client *payment.Client, w *wallet.Projection, publisher events.Publisher, clock clockwork.Clock, logger zerolog.Logger) *payment.Poller {
	return payment.NewPoller(payment.PollerOptions{
		Fetcher:   client,
		Wallet:    w,
		Publisher: publisher,
		Clock:     clock,
		Logger:    logger,
		Config: payment.PollerConfig{
			Interval:      cfg.Poller.Interval,
			RetryInterval: cfg.Poller.RetryInterval,
			Deadline:      cfg.Poller.Deadline,
		},
	})
}

// ProvideSettlement provides the deposit/withdraw flows
func ProvideSettlement(client *payment.Client, poller *payment.Poller, logger zerolog.Logger) *payment.Settlement {
	return payment.NewSettlement(client, poller, logger)
}

// ProvideGameRegistry provides the registry of playable games
func ProvideGameRegistry() *game.Registry {
	return game.DefaultRegistry()
}

// ProvideSandbox provides the local stand-in authority
func ProvideSandbox(cfg *config.Config, logger zerolog.Logger) (*sandbox.Server, error) {
	return sandbox.New(sandbox.Options{
		Config:      cfg.Sandbox,
		Environment: cfg.Environment,
		Logger:      logger,
	})
}

// App is the assembled player client
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Clock     clockwork.Clock
	Session   *session.Manager
	Wallet    *wallet.Projection
	Payments  *payment.Settlement
	Games     *game.Registry
	Publisher events.Publisher
}

// NewApp bundles the client components
func NewApp(
	cfg *config.Config,
	logger zerolog.Logger,
	clock clockwork.Clock,
	mgr *session.Manager,
	w *wallet.Projection,
	payments *payment.Settlement,
	games *game.Registry,
	publisher events.Publisher,
) *App {
	return &App{
		Config:    cfg,
		Logger:    logger,
		Clock:     clock,
		Session:   mgr,
		Wallet:    w,
		Payments:  payments,
		Games:     games,
		Publisher: publisher,
	}
}

// NewGame builds an orchestrator for one game, bound to the session and
// wallet
func (a *App) NewGame(kind game.Kind, onChange func(game.Round)) (*game.Orchestrator, error) {
	variant, err := a.Games.New(kind, a.Config.Games)
	if err != nil {
		return nil, err
	}
	return game.NewOrchestrator(game.Options{
		Variant:   variant,
		Requester: a.Session,
		Wallet:    a.Wallet,
		Publisher: a.Publisher,
		Clock:     a.Clock,
		Logger:    a.Logger,
		OnChange:  onChange,
	}), nil
}

// LoggingSet is the wire provider set for logging
var LoggingSet = wire.NewSet(
	ProvideLogger,
	ProvideClock,
)

// StorageSet is the wire provider set for the durable session store
var StorageSet = wire.NewSet(
	ProvideStore,
)

// EventsSet is the wire provider set for the audit sink
var EventsSet = wire.NewSet(
	ProvidePublisher,
)

// ClientSet is the wire provider set for the session, wallet, payment and
// game components
var ClientSet = wire.NewSet(
	ProvideHTTPClient,
	ProvideSessionManager,
	ProvideWallet,
	ProvidePaymentClient,
	ProvidePoller,
	ProvideSettlement,
	ProvideGameRegistry,
	NewApp,
)

// DefaultSet is the default wire provider set including all common providers
var DefaultSet = wire.NewSet(
	LoggingSet,
	StorageSet,
	EventsSet,
	ClientSet,
)

// SandboxSet is the wire provider set for the sandbox server
var SandboxSet = wire.NewSet(
	ProvideLogger,
	ProvideSandbox,
)
