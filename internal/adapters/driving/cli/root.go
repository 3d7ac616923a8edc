// Package cli implements the remotesync command line.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/core/ports/driving"
	"github.com/custodia-labs/remotesync/internal/logger"
)

// version is set at build time.
var version = "dev"

// Services holds the dependencies the commands run against. Nil entries
// make the commands that need them fail with a "not configured" error.
type Services struct {
	Accounts  driving.AccountService
	Apps      driving.AppService
	Sync      driving.SyncOrchestrator
	Hooks     driving.HookService
	Scheduler driving.Scheduler
	Config    driven.ConfigStore

	// Handler serves the HTTP API for the serve command.
	Handler    http.Handler
	ListenAddr string
	// Watch follows config changes until ctx is done.
	Watch func(ctx context.Context) error
}

var (
	accountService   driving.AccountService
	appService       driving.AppService
	syncOrchestrator driving.SyncOrchestrator
	hookService      driving.HookService
	scheduler        driving.Scheduler
	configStore      driven.ConfigStore
	apiHandler       http.Handler
	listenAddr       string
	watchConfig      func(ctx context.Context) error
)

// Flags shared by every command.
var (
	userID    string
	outJSON   bool
	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "remotesync",
	Short: "Mirror source-control repositories and organizations",
	Long: `remotesync connects GitHub, GitLab and Bitbucket accounts over OAuth and
keeps a local mirror of the repositories and organizations each account can
see, along with which user has admin access to what.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		switch f := logger.Format(logFormat); f {
		case logger.FormatConsole, logger.FormatJSON:
			logger.SetFormat(f)
		default:
			return fmt.Errorf("unknown log format %q", logFormat)
		}
		logger.SetVerbose(verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "local user ID")
	rootCmd.PersistentFlags().BoolVar(&outJSON, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", string(logger.FormatConsole), "log format (console, json)")
}

// Configure installs the services used by the commands.
func Configure(s Services) {
	accountService = s.Accounts
	appService = s.Apps
	syncOrchestrator = s.Sync
	hookService = s.Hooks
	scheduler = s.Scheduler
	configStore = s.Config
	apiHandler = s.Handler
	listenAddr = s.ListenAddr
	watchConfig = s.Watch
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func requireUser() (string, error) {
	if userID == "" {
		return "", errors.New("--user is required")
	}
	return userID, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readSecret reads without echo when stdin is a terminal.
func readSecret(cmd *cobra.Command, reader *bufio.Reader) string {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine(reader)
}

// maskSecret keeps the first and last four characters.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
