package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garrettladley/adega/internal/service/webhook"
)

func signCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "sign <payload.json|->",
		Short: "Print the X-Bling-Signature-256 value for a payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(args[0])
			if err != nil {
				return err
			}
			key, err := resolveSecret(secret)
			if err != nil {
				return err
			}

			fmt.Println(webhook.Sign(body, key))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (defaults to BLING_WEBHOOK_SECRET)")
	return cmd
}
