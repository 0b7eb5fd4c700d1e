package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/garrettladley/adega/internal/service/webhook"
	"github.com/garrettladley/adega/internal/xhttp"
)

func sendCmd() *cobra.Command {
	var (
		secret       string
		target       string
		retryAttempt int
		unsigned     bool
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <payload.json|->",
		Short: "Sign a payload and POST it to the webhook endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(args[0])
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, target, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			xhttp.SetRequestHeaderContentTypeApplicationJSON(req)
			if retryAttempt > 0 {
				req.Header.Set(xhttp.XRetryAttempt, strconv.Itoa(retryAttempt))
			}
			if !unsigned {
				key, err := resolveSecret(secret)
				if err != nil {
					return err
				}
				req.Header.Set(xhttp.XBlingSignature256, webhook.Sign(body, key))
			}

			resp, err := xhttp.NewHTTPClient(xhttp.WithTimeout(timeout)).Do(req)
			if err != nil {
				return fmt.Errorf("failed to send request: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			fmt.Printf("%s\n%s\n", resp.Status, strings.TrimSpace(string(respBody)))
			if resp.StatusCode >= http.StatusBadRequest {
				return fmt.Errorf("server answered %d", resp.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (defaults to BLING_WEBHOOK_SECRET)")
	cmd.Flags().StringVar(&target, "url", "http://localhost:8080/webhooks/bling", "webhook endpoint")
	cmd.Flags().IntVar(&retryAttempt, "retry-attempt", 0, "value for the X-Retry-Attempt header")
	cmd.Flags().BoolVar(&unsigned, "unsigned", false, "omit the signature header")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}
