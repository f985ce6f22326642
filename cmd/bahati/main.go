package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vanillake254/BAHATI-YANGU/config"
	apperrors "github.com/vanillake254/BAHATI-YANGU/errors"
	"github.com/vanillake254/BAHATI-YANGU/wire"
)

var version = getVersion()

// getVersion returns the module version from build info
func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

// cli carries the flags and the lazily assembled client shared by commands
type cli struct {
	configFile string
	configDir  string
	apiURL     string
	logLevel   string

	cfg     *config.Config
	app     *wire.App
	cleanup func()
}

func main() {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "bahati",
		Short: "Bahati Yangu player client",
		Long: `Play Bahati Yangu from the terminal.

Log in once, then deposit and withdraw through M-Pesa and play the wheel,
Predict or Pick a Box. The session is kept between runs until it expires.

Run "bahati sandbox" for a local stand-in server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()
			return c.loadConfig()
		},
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Config file (default: configs/config-$ENV.yaml)")
	rootCmd.PersistentFlags().StringVar(&c.configDir, "config-dir", "configs", "Directory searched for config-$ENV.yaml")
	rootCmd.PersistentFlags().StringVar(&c.apiURL, "api", "", "Server base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.walletCmd(),
		c.depositCmd(),
		c.withdrawCmd(),
		c.statusCmd(),
		c.spinCmd(),
		c.predictCmd(),
		c.pickBoxCmd(),
		c.sandboxCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if c.cleanup != nil {
		c.cleanup()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apperrors.UserMessage(err, err.Error()))
		os.Exit(1)
	}
}

func (c *cli) loadConfig() error {
	var err error
	if c.configFile != "" {
		c.cfg, err = config.Load(c.configFile)
	} else {
		c.cfg, err = config.LoadByEnv(c.configDir)
	}
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		c.cfg.API.BaseURL = c.apiURL
	}
	if c.logLevel != "" {
		c.cfg.Logging.Level = c.logLevel
	}
	return nil
}

// client assembles the player client on first use
func (c *cli) client() (*wire.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	app, cleanup, err := wire.InitializeApp(c.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}
	c.app, c.cleanup = app, cleanup
	return app, nil
}

// session assembles the client and restores the saved session
func (c *cli) session(ctx context.Context) (*wire.App, error) {
	app, err := c.client()
	if err != nil {
		return nil, err
	}
	if err := app.Session.Restore(ctx); err != nil {
		return nil, err
	}
	if !app.Session.Active() {
		return nil, apperrors.Auth(`Not logged in. Run "bahati login" first.`)
	}
	return app, nil
}
