package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"github.com/goodtune/tabtime/internal/client"
	"github.com/spf13/cobra"
)

var coachCmd = &cobra.Command{
	Use:   "coach",
	Short: "Ask the coaching backend for advice on today's usage",
	Long: `Send the recorded usage to the configured coaching backend and print its advice.
The server must have coach.endpoint set.`,
	Args: cobra.NoArgs,
	RunE: runCoach,
}

func init() {
	rootCmd.AddCommand(coachCmd)
}

func runCoach(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), client.AnalyzeTimeout)
	defer cancel()

	_, _ = color.New(color.Faint).Println("Thinking...")
	analysis, err := c.Analyze(ctx)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusServiceUnavailable:
				return fmt.Errorf("coaching is not configured: set coach.endpoint in the server configuration")
			case http.StatusBadRequest:
				fmt.Println("No data yet. Browse a few sites and try again!")
				return nil
			}
		}
		return fmt.Errorf("failed to get advice: %w", err)
	}

	_, _ = color.New(color.FgCyan, color.Bold).Println("\nCoach")
	fmt.Println(analysis.Text())
	return nil
}
