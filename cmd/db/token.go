package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/garrettladley/adega/internal/bling"
)

func tokenCmd() *cobra.Command {
	var (
		refresh bool
		code    string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Show, refresh or obtain the stored Bling OAuth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, h, err := connect(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = h.Close()
			}()

			if _, err := h.Migrate(ctx); err != nil {
				return err
			}

			if (refresh || code != "") && !cfg.ERPConfigured() {
				return errors.New("BLING_CLIENT_ID and BLING_CLIENT_SECRET must be set")
			}
			src := bling.NewDBTokenSource(bling.NewConfig(cfg), h.Store)

			var token *oauth2.Token
			switch {
			case code != "":
				token, err = src.Exchange(ctx, code)
			case refresh:
				token, err = src.Refresh(ctx)
			default:
				stored, gerr := h.Store.GetToken(ctx)
				if gerr != nil {
					return fmt.Errorf("failed to get token: %w", gerr)
				}
				token = &oauth2.Token{
					AccessToken:  stored.AccessToken,
					RefreshToken: stored.RefreshToken,
					TokenType:    stored.TokenType,
					Expiry:       stored.Expiry,
				}
			}
			if err != nil {
				return err
			}

			printToken(token)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "exchange the stored refresh token for a new token")
	cmd.Flags().StringVar(&code, "code", "", "exchange an authorization code and store the resulting token")
	cmd.MarkFlagsMutuallyExclusive("refresh", "code")
	return cmd
}

func printToken(token *oauth2.Token) {
	fmt.Printf("Access Token:  %s\n", token.AccessToken)
	if token.RefreshToken != "" {
		fmt.Printf("Refresh Token: %s\n", token.RefreshToken)
	}
	fmt.Printf("Token Type:    %s\n", token.TokenType)
	fmt.Printf("Expiry:        %s\n", token.Expiry.Format(time.RFC3339))

	if token.Expiry.Before(time.Now()) {
		fmt.Printf("Status:        EXPIRED\n")
	} else {
		fmt.Printf("Status:        Valid (expires in %s)\n", time.Until(token.Expiry).Round(time.Second))
	}
}
