package main

import (
	"github.com/spf13/cobra"

	"github.com/vanillake254/BAHATI-YANGU/sandbox"
	"github.com/vanillake254/BAHATI-YANGU/wire"
)

func (c *cli) sandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run a local stand-in server",
		Long: `Run a local server that speaks the same API as the real one.

One account is seeded:
  ` + sandbox.SeedEmail + ` / ` + sandbox.SeedPassword + `

Payments settle after a few status polls. Deposit or withdraw KES 400 to
see a failure, 450 for a cancelled prompt and 950 for one that never settles.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port, _ := cmd.Flags().GetInt("port"); port != 0 {
				c.cfg.Sandbox.Port = port
			}
			srv, err := wire.InitializeSandbox(c.cfg)
			if err != nil {
				return err
			}
			cmd.Printf("Sandbox listening on :%d (log in as %s)\n", c.cfg.Sandbox.Port, sandbox.SeedEmail)
			return srv.RunWithContext(cmd.Context())
		},
	}
	cmd.Flags().IntP("port", "p", 0, "Port (default: sandbox.port)")
	return cmd
}
