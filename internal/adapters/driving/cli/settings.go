package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/remotesync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/remotesync/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and change configuration",
	Long: `Shows the effective configuration (defaults, config file and REMOTESYNC_*
environment variables, in increasing precedence) and edits the config file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a config file value",
	Long: `Sets a value in the config file. Keys use dotted paths, for example:

  sync.privacy_level           public | private
  sync.deletion_policy         always | skip-on-partial
  sync.workers                 concurrent accounts in a full sync
  http.timeout                 per-request timeout, e.g. 30s
  http.requests_per_second     client-side rate limit (0 disables)
  scheduler.remote_sync_interval
  providers.gitlab.api_url     self-hosted API base URL

A running 'remotesync serve' picks up the change without a restart.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	settings, err := file.LoadSettings(configStore)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if outJSON {
		return printJSON(cmd, settings)
	}

	cmd.Printf("Config file:        %s\n", configStore.Path())
	cmd.Printf("Data directory:     %s\n", settings.DataDir)
	cmd.Printf("Listen address:     %s\n", settings.ListenAddr)
	cmd.Println()
	cmd.Println("Sync")
	cmd.Printf("  Privacy level:    %s\n", settings.Sync.Privacy)
	cmd.Printf("  Deletion policy:  %s\n", settings.Sync.DeletionPolicy)
	cmd.Printf("  Workers:          %d\n", settings.Sync.Workers)
	cmd.Println("HTTP")
	cmd.Printf("  Timeout:          %s\n", settings.HTTP.Timeout)
	cmd.Printf("  Page size:        %d\n", settings.HTTP.PageSize)
	cmd.Printf("  Requests/second:  %g\n", settings.HTTP.RequestsPerSecond)
	cmd.Println("Scheduler")
	cmd.Printf("  Enabled:          %t\n", settings.Scheduler.Enabled)
	cmd.Printf("  Sync interval:    %s\n", settings.Scheduler.GetTaskConfig(domain.TaskIDRemoteSync).Interval)
	for _, p := range domain.AllProviders() {
		if ep, ok := settings.Providers[p]; ok {
			cmd.Printf("%s endpoints: %s %s\n", p.DisplayName(), ep.APIURL, ep.WebURL)
		}
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	key, raw := args[0], args[1]

	if err := configStore.Set(key, parseValue(raw)); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	if _, err := file.LoadSettings(configStore); err != nil {
		_ = configStore.Load()
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := configStore.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	cmd.Printf("%s = %s\n", key, raw)
	return nil
}

// parseValue keeps TOML-native types for booleans and numbers.
func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}
