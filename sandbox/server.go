package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vanillake254/BAHATI-YANGU/auth"
	"github.com/vanillake254/BAHATI-YANGU/config"
	"github.com/vanillake254/BAHATI-YANGU/game"
	"github.com/vanillake254/BAHATI-YANGU/middleware"
	"github.com/vanillake254/BAHATI-YANGU/session"
)

// Seeded account available on every fresh sandbox
const (
	SeedEmail    = "player@bahati.test"
	SeedPassword = "bahati-sandbox"
	SeedMpesa    = "0712345678"
)

// Server is an in-memory stand-in for the remote authority. It speaks the
// same JSON contract so the client packages can run against it end to end.
type Server struct {
	engine     *gin.Engine
	config     config.SandboxConfig
	logger     zerolog.Logger
	clock      clockwork.Clock
	ledger     *Ledger
	games      *Games
	seedUserID int64
	httpServer *http.Server
	onShutdown []func()
}

// Options holds sandbox construction options
type Options struct {
	Config      config.SandboxConfig
	Environment string
	Logger      zerolog.Logger
	// Clock drives token issuance and row timestamps; nil means the real clock
	Clock  clockwork.Clock
	Script Script
	Wheel  []game.Segment
	// SeedBalance is credited to the seeded account as a real deposit
	SeedBalance decimal.Decimal
}

// New creates a sandbox with the seeded account and every route registered
func New(opts Options) (*Server, error) {
	if opts.Environment == "development" || opts.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	ledger := NewLedger(opts.Clock, opts.Script, opts.Config.SettleAfterPolls)
	s := &Server{
		engine: gin.New(),
		config: opts.Config,
		logger: opts.Logger.With().Str("component", "sandbox").Logger(),
		clock:  opts.Clock,
		ledger: ledger,
		games:  NewGames(ledger, opts.Wheel, opts.Config.Seed),
	}

	seed, err := ledger.Register(session.RegisterPayload{
		Email:       SeedEmail,
		MpesaNumber: SeedMpesa,
		Password:    SeedPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed sandbox account: %w", err)
	}
	s.seedUserID = seed.ID
	if opts.SeedBalance.IsPositive() {
		ledger.Credit(seed.ID, opts.SeedBalance)
	}

	s.useCommonMiddlewares()
	s.registerHealthCheck()
	s.registerRoutes()
	return s, nil
}

func (s *Server) useCommonMiddlewares() {
	// Recovery middleware (must be first)
	s.engine.Use(middleware.Recovery(s.logger))
	s.engine.Use(middleware.TraceID())
	s.engine.Use(middleware.Logging(s.logger))

	if s.config.EnableCORS {
		cors := middleware.DefaultCORSConfig()
		if len(s.config.AllowOrigins) > 0 {
			cors.AllowOrigins = s.config.AllowOrigins
		}
		s.engine.Use(middleware.CORSWithConfig(cors))
	}
}

func (s *Server) registerHealthCheck() {
	s.engine.GET("/health", s.healthCheck)
	s.engine.GET("/api/health", s.healthCheck)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": s.clock.Now(),
		"service":   "bahati-sandbox",
	})
}

func (s *Server) registerRoutes() {
	jwt := auth.DefaultJWTConfig(s.config.JWTSecret)
	jwt.Now = s.clock.Now
	authed := auth.JWTMiddlewareWithConfig(jwt, s.logger)

	api := s.engine.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/login/", s.login)
	authGroup.POST("/register/", s.register)
	authGroup.GET("/me/", authed, s.me)

	api.GET("/wallet/me/", authed, s.walletDetail)
	api.GET("/transactions/", authed, s.transactions)

	payments := api.Group("/payments", authed)
	payments.POST("/deposit/", s.deposit)
	payments.POST("/withdraw/", s.withdraw)
	payments.GET("/status/:id/", s.paymentStatus)

	games := api.Group("/games")
	games.GET("/wheel/", s.wheel)
	games.POST("/spin/", authed, s.spin)
	games.POST("/predict/", authed, s.predict)
	games.POST("/pick-box/", authed, s.pickBox)
}

// Handler returns the HTTP handler, for httptest servers
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Ledger exposes the sandbox bookkeeping
func (s *Server) Ledger() *Ledger {
	return s.ledger
}

// SeedUserID is the id of the seeded account
func (s *Server) SeedUserID() int64 {
	return s.seedUserID
}

// OnShutdown registers a function to be called on shutdown
func (s *Server) OnShutdown(fn func()) {
	s.onShutdown = append(s.onShutdown, fn)
}

// RunWithContext serves on the configured port until ctx is done
func (s *Server) RunWithContext(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().
			Int("port", s.config.Port).
			Str("seed_email", SeedEmail).
			Msg("Starting sandbox server")

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		return err
	}
}

func (s *Server) shutdown() error {
	s.logger.Info().Msg("Shutting down sandbox...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, fn := range s.onShutdown {
		fn()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during sandbox shutdown")
		return err
	}

	s.logger.Info().Msg("Sandbox shutdown complete")
	return nil
}
