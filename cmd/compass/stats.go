package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/karavel-ai/compass/internal/config"
	"github.com/karavel-ai/compass/internal/state"
)

var statsOrg string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate workflow analytics",
	Long: `Display aggregate analytics for an organization.

Shows workflow counts by outcome, total estimated and actual cost, and
how often each capability has been used.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsOrg, "org", "default", "Organization to aggregate")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := dbPath(cfg)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No workflows recorded. Run 'compass run <query>' to start.")
		return nil
	}

	db, err := state.Open(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	stats, err := db.AggregateStats(statsOrg)
	if err != nil {
		return fmt.Errorf("aggregate stats: %w", err)
	}

	fmt.Printf("Organization: %s\n", statsOrg)
	fmt.Printf("  Workflows: %d total, %d completed, %d failed\n",
		stats.TotalWorkflows, stats.CompletedCount, stats.FailedCount)
	fmt.Printf("  Cost:      $%.4f estimated, $%.4f actual\n",
		stats.TotalEstimatedCost, stats.TotalActualCost)

	if len(stats.CapabilityUsage) == 0 {
		return nil
	}

	// Stable order, busiest capability first.
	type usage struct {
		name  string
		count int
	}
	usages := make([]usage, 0, len(stats.CapabilityUsage))
	for name, count := range stats.CapabilityUsage {
		usages = append(usages, usage{name, count})
	}
	sort.Slice(usages, func(i, j int) bool {
		if usages[i].count != usages[j].count {
			return usages[i].count > usages[j].count
		}
		return usages[i].name < usages[j].name
	})

	fmt.Println("  Capability usage:")
	for _, u := range usages {
		fmt.Printf("    %-15s %d\n", u.name, u.count)
	}
	return nil
}
