package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driving"
)

var syncCmd = &cobra.Command{
	Use:   "sync [account-id]",
	Short: "Mirror repositories and organizations from providers",
	Long: `Runs a sync pass that mirrors the repositories and organizations visible
to connected accounts. With an account ID only that account is synced; with
--user every account of the user; otherwise every connected account.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

var statusCmd = &cobra.Command{
	Use:   "status [account-id]",
	Short: "Show the sync status of an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// statusPollInterval is how often progress is printed during a single sync.
var statusPollInterval = 500 * time.Millisecond

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}
	ctx := cmd.Context()

	var (
		results []domain.SyncResult
		err     error
	)
	switch {
	case len(args) > 0:
		cmd.Printf("Synchronising account: %s...\n", args[0])
		var result *domain.SyncResult
		result, err = syncWithProgress(ctx, cmd, syncOrchestrator, args[0])
		if result != nil {
			results = append(results, *result)
		}
	case userID != "":
		cmd.Printf("Synchronising accounts of user: %s...\n", userID)
		results, err = syncOrchestrator.SyncUser(ctx, userID)
	default:
		cmd.Println("Synchronising all accounts...")
		results, err = syncOrchestrator.SyncAll(ctx)
	}

	if outJSON {
		if jerr := printJSON(cmd, results); jerr != nil {
			return jerr
		}
	} else {
		for i := range results {
			printResult(cmd, &results[i])
		}
	}
	if err != nil {
		var perr *domain.ProviderError
		if errors.As(err, &perr) {
			return fmt.Errorf("sync failed: %s", perr.UserMessage())
		}
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

func printResult(cmd *cobra.Command, r *domain.SyncResult) {
	if r.NoSession {
		cmd.Printf("  %s (%s): no stored credential, skipped\n", r.AccountID, r.Provider)
		return
	}
	cmd.Printf("  %s (%s): %d repositories, %d organizations, %d skipped, %d relations removed in %s\n",
		r.AccountID, r.Provider, r.Repositories, r.Organizations, r.Skipped,
		r.RelationsDeleted+r.OrganizationRelationsDeleted, r.Duration().Round(time.Millisecond))
	if r.Partial {
		cmd.Printf("    partial listing (%d mapping errors)", r.MappingErrors)
		if r.PruneSkipped {
			cmd.Print(", stale relations kept")
		}
		cmd.Println()
	}
}

// syncWithProgress runs a sync while printing progress.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	syncOrch driving.SyncOrchestrator,
	accountID string,
) (*domain.SyncResult, error) {
	type outcome struct {
		result *domain.SyncResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := syncOrch.Sync(ctx, accountID)
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case out := <-done:
			if lastCount > 0 {
				cmd.Println()
			}
			return out.result, out.err
		case <-ticker.C:
			status, err := syncOrch.Status(ctx, accountID)
			if err == nil && status != nil && status.Running && status.ItemsProcessed > lastCount {
				cmd.Printf("\r%s... %d items", status.Stage, status.ItemsProcessed)
				lastCount = status.ItemsProcessed
			}
		}
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	status, err := syncOrchestrator.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if outJSON {
		return printJSON(cmd, status)
	}

	if !status.Running {
		cmd.Printf("Account %s: idle\n", status.AccountID)
		return nil
	}
	cmd.Printf("Account %s: %s, %d items (%d errors)\n",
		status.AccountID, status.Stage, status.ItemsProcessed, status.ErrorCount)
	return nil
}
