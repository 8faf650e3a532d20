package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/karavel-ai/compass/internal/approval"
	"github.com/karavel-ai/compass/internal/config"
)

var (
	approveReject   bool
	approveFeedback string
)

var approveCmd = &cobra.Command{
	Use:   "approve <correlation-id>",
	Short: "Decide a workflow parked at the approval gate",
	Long: `Approve or reject a workflow that is awaiting approval.

An approved workflow continues to execution immediately. A rejected
workflow terminates without running its capability executor.`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func init() {
	approveCmd.Flags().BoolVar(&approveReject, "reject", false, "Reject the workflow instead of approving it")
	approveCmd.Flags().StringVar(&approveFeedback, "feedback", "", "Reviewer note recorded on the workflow")
}

func runApprove(cmd *cobra.Command, args []string) error {
	correlationID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, _, store, err := buildEngine(cfg, approval.PolicySuspend)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rec, err := eng.Resume(ctx, correlationID, approval.Decision{
		CorrelationID: correlationID,
		Approved:      !approveReject,
		Feedback:      approveFeedback,
	})
	if err != nil {
		return err
	}

	printRecord(rec)
	return nil
}
