package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vanillake254/BAHATI-YANGU/session"
)

func passwordFlag(cmd *cobra.Command) string {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("BAHATI_PASSWORD")
	}
	return password
}

// ageGate verifies the birth year when one was given
func ageGate(cmd *cobra.Command, mgr *session.Manager) error {
	year, _ := cmd.Flags().GetInt("birth-year")
	if year == 0 {
		return nil
	}
	return mgr.VerifyBirthYear(year)
}

func (c *cli) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and keep the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.client()
			if err != nil {
				return err
			}
			if err := app.Session.Login(cmd.Context(), args[0], passwordFlag(cmd)); err != nil {
				return err
			}
			if err := ageGate(cmd, app.Session); err != nil {
				return err
			}
			printUser(cmd, app.Session.Snapshot())
			return nil
		},
	}
	cmd.Flags().StringP("password", "p", "", "Password (default: $BAHATI_PASSWORD)")
	cmd.Flags().Int("birth-year", 0, "Year of birth for the age check")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <email> <mpesa-number>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.client()
			if err != nil {
				return err
			}
			referral, _ := cmd.Flags().GetString("referral")
			err = app.Session.Register(cmd.Context(), session.RegisterPayload{
				Email:        args[0],
				MpesaNumber:  args[1],
				Password:     passwordFlag(cmd),
				ReferralCode: referral,
			})
			if err != nil {
				return err
			}
			if err := ageGate(cmd, app.Session); err != nil {
				return err
			}
			cmd.Println("Account created.")
			printUser(cmd, app.Session.Snapshot())
			return nil
		},
	}
	cmd.Flags().StringP("password", "p", "", "Password (default: $BAHATI_PASSWORD)")
	cmd.Flags().String("referral", "", "Referral code of the player who invited you")
	cmd.Flags().Int("birth-year", 0, "Year of birth for the age check")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.client()
			if err != nil {
				return err
			}
			// a stale session is purged by Restore itself
			_ = app.Session.Restore(cmd.Context())
			app.Session.Logout()
			cmd.Println("Logged out.")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			printUser(cmd, app.Session.Snapshot())
			return nil
		},
	}
}

func printUser(cmd *cobra.Command, snap session.Snapshot) {
	if snap.User == nil {
		cmd.Println("Not logged in.")
		return
	}
	u := snap.User
	cmd.Printf("%s (id %d)\n", u.Email, u.ID)
	cmd.Printf("  M-Pesa:   %s\n", u.MpesaNumber)
	if u.ReferralCode != "" {
		cmd.Printf("  Referral: %s\n", u.ReferralCode)
	}
	if !snap.AccessExpiresAt.IsZero() {
		cmd.Printf("  Session expires %s\n", snap.AccessExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	if u.ForcePasswordChange {
		cmd.Println("  You must change your password before playing.")
	}
}
