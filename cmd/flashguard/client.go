package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fd1az/flashguard/internal/httpclient"
)

const defaultAPIURL = "http://localhost:8081"

func addAPIFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", defaultAPIURL, "Base URL of a running flashguard status server")
	cmd.Flags().Duration("timeout", 5*time.Second, "Request timeout")
}

func apiClient(cmd *cobra.Command) (*httpclient.InstrumentedClient, error) {
	base, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(base),
		httpclient.WithProviderName("flashguard-cli"),
		httpclient.WithRequestTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}
