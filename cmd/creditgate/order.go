package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/creditgate/pkg/billing"
)

func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect provider order identifiers",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "decode <order-id>",
			Short: "Decode an order id into user, kind and nonce",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				o, err := billing.DecodeOrder(args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]string{
					"user_id": o.UserID,
					"kind":    string(o.Kind),
					"nonce":   o.Nonce,
				})
			},
		},
		&cobra.Command{
			Use:   "encode <user-id> <subscription|credits>",
			Short: "Build an order id stamped with the current time",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := billing.EncodeOrder(args[0], billing.Kind(args[1]), billing.NewNonce(time.Now()))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			},
		},
	)
	return cmd
}
