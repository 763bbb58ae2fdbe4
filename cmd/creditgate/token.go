package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/creditgate/pkg/identity"
	"github.com/dmitrymomot/creditgate/pkg/logger"
)

func newTokenCmd() *cobra.Command {
	var (
		envFiles []string
		email    string
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for local development",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(envFiles...)
			if err != nil {
				return err
			}
			if logger.IsProduction(s.App.Env) {
				return fmt.Errorf("refusing to mint tokens in %s", s.App.Env)
			}

			ids, err := identity.New(s.Identity)
			if err != nil {
				return err
			}
			tok, err := ids.Issue(identity.Identity{UserID: args[0], Email: email, EmailVerified: email != ""})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "additional dotenv files to load")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	return cmd
}
