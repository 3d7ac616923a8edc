package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Manage project webhooks on the provider",
	Long: `Create, update and refresh the webhook of a project integration using
the credentials of the project's maintainers.`,
}

var hooksSetupCmd = &cobra.Command{
	Use:   "setup [project-id] [integration-id]",
	Short: "Create the webhook on the provider",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, "Webhook created", args, hookSetup)
	},
}

var hooksUpdateCmd = &cobra.Command{
	Use:   "update [project-id] [integration-id]",
	Short: "Update the webhook, creating it if it is gone",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, "Webhook updated", args, hookUpdate)
	},
}

var hooksProviderDataCmd = &cobra.Command{
	Use:   "provider-data [project-id] [integration-id]",
	Short: "Refresh the stored provider view of the webhook",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, "Provider data refreshed", args, hookProviderData)
	},
}

var buildStatusCmd = &cobra.Command{
	Use:   "build-status [build-id] [state]",
	Short: "Report a build's state (pending, success, failure) as a commit status",
	Args:  cobra.ExactArgs(2),
	RunE:  runBuildStatus,
}

var buildLink bool

type hookOp int

const (
	hookSetup hookOp = iota
	hookUpdate
	hookProviderData
)

func init() {
	buildStatusCmd.Flags().BoolVar(&buildLink, "link", true, "link the status to the build page")

	hooksCmd.AddCommand(hooksSetupCmd)
	hooksCmd.AddCommand(hooksUpdateCmd)
	hooksCmd.AddCommand(hooksProviderDataCmd)
	rootCmd.AddCommand(hooksCmd)
	rootCmd.AddCommand(buildStatusCmd)
}

func runHook(cmd *cobra.Command, done string, args []string, op hookOp) error {
	if hookService == nil {
		return errors.New("hook service not configured")
	}

	var call func(ctx context.Context, projectID, integrationID string) (*domain.HookResult, error)
	switch op {
	case hookSetup:
		call = hookService.SetupWebhook
	case hookUpdate:
		call = hookService.UpdateWebhook
	default:
		call = hookService.SyncProviderData
	}

	result, err := call(cmd.Context(), args[0], args[1])
	return reportHook(cmd, done, result, err)
}

func runBuildStatus(cmd *cobra.Command, args []string) error {
	if hookService == nil {
		return errors.New("hook service not configured")
	}

	state := domain.BuildState(args[1])
	if !state.IsValid() {
		return fmt.Errorf("unknown build state %q", args[1])
	}

	result, err := hookService.SendBuildStatus(cmd.Context(), args[0], state, buildLink)
	return reportHook(cmd, "Build status sent", result, err)
}

func reportHook(cmd *cobra.Command, done string, result *domain.HookResult, err error) error {
	if errors.Is(err, domain.ErrUnsupported) {
		cmd.Println("The provider does not support this operation; nothing to do.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("provider call failed: %w", err)
	}
	if outJSON {
		return printJSON(cmd, result)
	}
	if !result.OK {
		return fmt.Errorf("provider rejected the request (HTTP %d)", result.StatusCode)
	}

	cmd.Printf("%s via account %s.\n", done, result.AccountID)
	return nil
}
