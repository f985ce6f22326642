package main

import (
	"github.com/spf13/cobra"

	"github.com/vanillake254/BAHATI-YANGU/game"
)

func (c *cli) spinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spin <stake>",
		Short: "Spin the wheel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")
			return c.play(cmd, game.KindSpin, args[0], mode)
		},
	}
	cmd.Flags().StringP("mode", "m", "classic", "Wheel mode: classic, turbo or highroller")
	return cmd
}

func (c *cli) predictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <stake> <red|black>",
		Short: "Predict the next colour",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.play(cmd, game.KindPredict, args[0], args[1])
		},
	}
}

func (c *cli) pickBoxCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "pickbox <stake> <left|middle|right>",
		Aliases: []string{"pick-box"},
		Short:   "Pick one of three boxes",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.play(cmd, game.KindPickBox, args[0], args[1])
		},
	}
}

// play runs one round and blocks until it is revealed
func (c *cli) play(cmd *cobra.Command, kind game.Kind, rawStake, input string) error {
	stake, err := parseAmount(rawStake, "stake amount")
	if err != nil {
		return err
	}
	app, err := c.session(cmd.Context())
	if err != nil {
		return err
	}

	orch, err := app.NewGame(kind, func(r game.Round) {
		if r.State == game.StateAnimating {
			cmd.Println("...")
		}
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.Prepare(cmd.Context()); err != nil {
		return err
	}
	if _, err := orch.Play(cmd.Context(), stake, input); err != nil {
		return err
	}
	round, err := orch.Wait(cmd.Context())
	if err != nil {
		return err
	}

	if round.Notice != nil {
		cmd.Println(round.Notice.Message)
	}
	if round.Outcome != nil {
		cmd.Printf("Balance: KES %s\n", round.Outcome.Balance.StringFixed(2))
	}
	return nil
}
