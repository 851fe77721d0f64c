package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget every saved token",
		Long: `Forget every saved token.

Other portal processes watching the same session file drop their cached
listings as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPurchaser()
			if err != nil {
				return err
			}
			if err := p.docs.SignOut(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed out, %s cleared\n", p.file.Path())
			return nil
		},
	}
}
