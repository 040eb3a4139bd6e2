package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/tabtime/internal/report"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is being tracked right now",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	status, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}
	u, err := c.Usage(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch usage: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	_, _ = cyan.Println("\nTracker")
	switch {
	case status.Running:
		fmt.Print("  State:   ")
		_, _ = green.Println("tracking")
	case status.Domain != "":
		fmt.Print("  State:   ")
		_, _ = yellow.Println("paused")
	default:
		fmt.Println("  State:   idle (no trackable tab)")
	}
	if status.Domain != "" {
		fmt.Printf("  Domain:  %s (tab %d)\n", status.Domain, status.TabID)
	}
	if status.StartedAt != nil {
		fmt.Printf("  Since:   %s (%s unsaved)\n",
			status.StartedAt.Local().Format(time.Kitchen),
			report.FormatMinSec(status.ElapsedSeconds))
	}

	_, _ = cyan.Println("\nRecorded")
	fmt.Printf("  Domains: %d\n", len(u.Entries))
	fmt.Printf("  Total:   %s\n", report.FormatMinSec(u.TotalSeconds))

	return nil
}
