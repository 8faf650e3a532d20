package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/karavel-ai/compass/internal/config"
	"github.com/karavel-ai/compass/internal/state"
	"github.com/karavel-ai/compass/pkg/models"
)

var (
	statusOrg   string
	statusLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status [correlation-id]",
	Short: "Show workflow state",
	Long: `Display workflow records from the state store.

With a correlation ID, shows the full record for that workflow.
Without arguments, lists recent workflows for the organization.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusOrg, "org", "default", "Organization to list workflows for")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Maximum number of workflows to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	if len(args) == 1 {
		return showWorkflow(db, args[0])
	}
	return listWorkflows(db)
}

func showWorkflow(db *state.DB, correlationID string) error {
	rec, err := db.GetByCorrelationID(correlationID)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("no workflow with correlation ID %s", correlationID)
	}

	printRecord(rec)
	if len(rec.CapabilityHistory) > 0 {
		fmt.Printf("  History:    %v\n", rec.CapabilityHistory)
	}
	if rec.RequiresApproval {
		verdict := "pending"
		if rec.Terminal() || rec.Approved {
			verdict = fmt.Sprintf("approved=%t", rec.Approved)
		}
		fmt.Printf("  Approval:   %s", verdict)
		if rec.ApprovalFeedback != "" {
			fmt.Printf(" (%s)", rec.ApprovalFeedback)
		}
		fmt.Println()
	}
	return nil
}

func listWorkflows(db *state.DB) error {
	records, err := db.ListByOrganization(statusOrg, statusLimit)
	if err != nil {
		return fmt.Errorf("list workflows: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("No workflows for organization %q.\n", statusOrg)
		return nil
	}

	fmt.Printf("Recent workflows for %s:\n", statusOrg)
	for _, rec := range records {
		elapsed := formatDuration(time.Since(rec.StartedAt))
		summary := truncate(rec.UserQuery, 50)
		fmt.Printf("  %s  %-18s %-14s %q (%s ago)\n",
			rec.CorrelationID, colorStatus(rec.Status), rec.CurrentCapability, summary, elapsed)
	}

	awaiting := 0
	for _, rec := range records {
		if rec.Status == models.StatusAwaitingApproval {
			awaiting++
		}
	}
	if awaiting > 0 {
		fmt.Printf("\n%d workflow(s) awaiting approval. Decide with 'compass approve <id>'.\n", awaiting)
	}
	return nil
}

// truncate shortens a string for single-line display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
