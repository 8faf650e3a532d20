package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/karavel-ai/compass/internal/approval"
	"github.com/karavel-ai/compass/internal/config"
	"github.com/karavel-ai/compass/pkg/models"
)

var (
	runOrg           string
	runCorrelationID string
	runPolicy        string
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Run a workflow for a business request",
	Long: `Run a business request through the workflow pipeline.

The request is classified, cost-estimated, and dispatched to the matching
capability executor. High-stakes capabilities (document generation, grant
matching, product sourcing) are held for approval first.

Approval policy (--policy):
  - auto:        approve high-stakes work automatically (default)
  - interactive: prompt for approval in the terminal
  - suspend:     park the workflow; approve later with 'compass approve'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().StringVar(&runOrg, "org", "default", "Organization the request belongs to")
	runCmd.Flags().StringVar(&runCorrelationID, "id", "", "Correlation ID (generated when empty)")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "Approval policy: auto, interactive, or suspend")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	policyName := cfg.Approval.Policy
	if runPolicy != "" {
		policyName = runPolicy
	}
	policy, err := parsePolicy(policyName)
	if err != nil {
		return err
	}

	eng, gate, store, err := buildEngine(cfg, policy)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if policy == approval.PolicyInteractive {
		go promptForApprovals(ctx, gate)
	}

	rec, err := eng.Run(ctx, query, runOrg, runCorrelationID)
	if err != nil {
		return fmt.Errorf("run workflow: %w", err)
	}

	printRecord(rec)
	return nil
}

// promptForApprovals services approval requests from the terminal.
func promptForApprovals(ctx context.Context, gate *approval.Gate) {
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-gate.RequestCh():
			fmt.Printf("\n%s %s wants to run %s (estimated $%.2f)\n",
				color.YellowString("⚠"), req.CorrelationID, color.CyanString(req.Capability), req.EstimatedCost)
			fmt.Printf("  Request: %s\n", req.UserQuery)
			fmt.Print("Approve? [y/N] ")

			line, err := reader.ReadString('\n')
			approved := err == nil && strings.HasPrefix(strings.TrimSpace(strings.ToLower(line)), "y")

			feedback := "approved in terminal"
			if !approved {
				feedback = "rejected in terminal"
			}
			gate.SubmitDecision(approval.Decision{
				CorrelationID: req.CorrelationID,
				Approved:      approved,
				Feedback:      feedback,
			})
		}
	}
}

// printRecord renders a workflow record for the terminal.
func printRecord(rec *models.WorkflowRecord) {
	fmt.Printf("Workflow %s\n", rec.CorrelationID)
	fmt.Printf("  Status:     %s\n", colorStatus(rec.Status))
	fmt.Printf("  Intent:     %s (%.0f%% confidence)\n", rec.Intent, rec.Confidence*100)
	fmt.Printf("  Capability: %s\n", rec.CurrentCapability)
	fmt.Printf("  Cost:       $%.4f estimated", rec.EstimatedCost)
	if rec.ActualCost > 0 {
		fmt.Printf(", $%.4f actual", rec.ActualCost)
	}
	fmt.Println()

	switch rec.Status {
	case models.StatusCompleted:
		fmt.Printf("\n%s\n", rec.FinalOutput)
	case models.StatusFailed:
		fmt.Printf("\n%s %s\n", color.RedString("✗"), rec.Error)
	case models.StatusAwaitingApproval:
		fmt.Printf("\n%s Awaiting approval. Decide with:\n  compass approve %s\n",
			color.YellowString("⚠"), rec.CorrelationID)
	}
}

// colorStatus renders a status with a terminal color.
func colorStatus(s models.Status) string {
	switch s {
	case models.StatusCompleted:
		return color.GreenString(string(s))
	case models.StatusFailed:
		return color.RedString(string(s))
	case models.StatusAwaitingApproval:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
