package main

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status document of a running gate",
	RunE:  showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	addAPIFlags(statusCmd)
}

func showStatus(cmd *cobra.Command, _ []string) error {
	client, err := apiClient(cmd)
	if err != nil {
		return err
	}

	resp, err := client.NewRequest().Get(cmd.Context(), "/status")
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch status: %s: %s", resp.Status, resp.String())
	}

	var out bytes.Buffer
	if err := json.Indent(&out, resp.Body(), "", "  "); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(cmd.OutOrStdout())
	return err
}
