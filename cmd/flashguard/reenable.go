package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var reenableCmd = &cobra.Command{
	Use:   "reenable",
	Short: "Lift an emergency stop on a running gate",
	Long: `Lifts an emergency stop and resumes trading. The error budget is
cleared but the loss counters are kept, so a gate still over its daily loss
cap keeps rejecting trades until the daily reset.

The admin token is read from --token or FLASHGUARD_ADMIN_TOKEN.`,
	RunE: reenable,
}

func init() {
	rootCmd.AddCommand(reenableCmd)
	addAPIFlags(reenableCmd)
	reenableCmd.Flags().String("token", "", "Admin token")
}

func reenable(cmd *cobra.Command, _ []string) error {
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("FLASHGUARD_ADMIN_TOKEN")
	}
	if token == "" {
		return errors.New("admin token required")
	}

	client, err := apiClient(cmd)
	if err != nil {
		return err
	}

	resp, err := client.NewRequest().
		SetHeader("Authorization", "Bearer "+token).
		Post(cmd.Context(), "/admin/reenable")
	if err != nil {
		return fmt.Errorf("reenable: %w", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("reenable: %s: %s", resp.Status, resp.String())
	}

	fmt.Fprintln(cmd.OutOrStdout(), "trading re-enabled")
	return nil
}
