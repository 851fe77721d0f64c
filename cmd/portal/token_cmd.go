package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage purchaser QR tokens",
		Long: `Manage the QR tokens printed on purchasers' welcome packs.

A unit has at most one working token: signing a new one revokes the old.`,
	}

	cmd.AddCommand(newTokenSignCmd())
	cmd.AddCommand(newTokenRevokeCmd())
	return cmd
}

func newTokenSignCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sign <unitUid>",
		Short:   "Sign a new token for a unit",
		Args:    cobra.ExactArgs(1),
		Example: `  portal token sign LP-001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAPIConfig()
			if err != nil {
				return err
			}
			srv, st, err := buildServer(cmd, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			g, err := srv.IssueToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "token:   %s\n", g.Token)
			fmt.Fprintf(out, "url:     %s\n", g.URL)
			fmt.Fprintf(out, "expires: %s\n", g.ExpiresAt.Format("2006-01-02 15:04 MST"))
			return nil
		},
	}
}

func newTokenRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token>",
		Short: "Stop a token from being accepted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAPIConfig()
			if err != nil {
				return err
			}
			srv, st, err := buildServer(cmd, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := srv.RevokeToken(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "revoked")
			return nil
		},
	}
}
