package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/tabtime/internal/report"
	"github.com/spf13/cobra"
)

const clientTimeout = 10 * time.Second

var (
	reportTop  int
	reportJSON bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show today's usage report",
	Long:  `Show time per category, the productivity score and the most visited sites.`,
	Example: `  tabtime report
  tabtime report --top 5
  tabtime --server http://127.0.0.1:7420 report --json`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportTop, "top", report.DefaultTopSites, "Number of sites to list")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportTop <= 0 {
		return fmt.Errorf("--top must be positive, got %d", reportTop)
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	r, err := c.Report(ctx, reportTop)
	if err != nil {
		return fmt.Errorf("failed to fetch report: %w", err)
	}

	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	printReport(r)
	return nil
}

func printReport(r *report.Report) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	_, _ = cyan.Println("\nToday")
	fmt.Printf("  Total time:   %s\n", report.FormatMinSec(r.TotalSeconds))

	scoreColor := red
	switch {
	case r.Score >= 60:
		scoreColor = green
	case r.Score >= 30:
		scoreColor = yellow
	}
	fmt.Print("  Productivity: ")
	_, _ = scoreColor.Printf("%d%%\n", r.Score)

	if len(r.Categories) > 0 {
		_, _ = cyan.Println("\nCategories")
		for _, c := range r.Categories {
			fmt.Printf("  %-15s %s\n", c.Category, report.FormatMinSec(c.Seconds))
		}
	}

	_, _ = cyan.Println("\nTop sites")
	if len(r.TopSites) == 0 {
		fmt.Println("  No activity recorded yet")
		return
	}
	width := 0
	for _, s := range r.TopSites {
		if len(s.Domain) > width {
			width = len(s.Domain)
		}
	}
	for i, s := range r.TopSites {
		fmt.Printf("  %2d. %-*s  %8s  %s\n", i+1, width, s.Domain, s.Formatted, strings.ToLower(s.Category))
	}
}
