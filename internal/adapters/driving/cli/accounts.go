package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/remotesync/internal/adapters/driving/oauth"
)

// Loopback ports tried for the redirect listener. Register
// http://localhost:<port>/callback for these with the provider app.
const (
	callbackPortStart = 18080
	callbackPortEnd   = 18089
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage connected provider accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the accounts connected by a user",
	RunE:  runAccountsList,
}

var accountsConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect an account through an OAuth app",
	Long: `Opens the provider's authorization page and waits for the redirect on a
local port. The account is stored for the user given with --user and synced
with 'remotesync sync'.`,
	RunE: runAccountsConnect,
}

var accountsDisconnectCmd = &cobra.Command{
	Use:   "disconnect [account-id]",
	Short: "Disconnect an account and drop its access records",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsDisconnect,
}

var (
	connectAppID     string
	connectPort      int
	connectNoBrowser bool
	connectTimeout   time.Duration
)

func init() {
	accountsConnectCmd.Flags().StringVar(&connectAppID, "app", "", "OAuth app ID")
	accountsConnectCmd.Flags().IntVar(&connectPort, "port", 0, "callback port (first free port from 18080 if unset)")
	accountsConnectCmd.Flags().BoolVar(&connectNoBrowser, "no-browser", false, "print the URL instead of opening it")
	accountsConnectCmd.Flags().DurationVar(&connectTimeout, "timeout", 5*time.Minute, "time to wait for the redirect")
	_ = accountsConnectCmd.MarkFlagRequired("app")

	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsConnectCmd)
	accountsCmd.AddCommand(accountsDisconnectCmd)
	rootCmd.AddCommand(accountsCmd)
}

func runAccountsList(cmd *cobra.Command, _ []string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}
	user, err := requireUser()
	if err != nil {
		return err
	}

	accounts, err := accountService.List(cmd.Context(), user)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if outJSON {
		return printJSON(cmd, accounts)
	}

	if len(accounts) == 0 {
		cmd.Println("No connected accounts.")
		return nil
	}
	for i := range accounts {
		a := &accounts[i]
		cmd.Printf("  %s  %-9s  %s\n", a.ID, a.Provider, a.Username)
	}
	return nil
}

func runAccountsConnect(cmd *cobra.Command, _ []string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}
	user, err := requireUser()
	if err != nil {
		return err
	}

	port := connectPort
	if port == 0 {
		port, err = oauth.FindAvailablePort(callbackPortStart, callbackPortEnd)
		if err != nil {
			return err
		}
	}
	redirectURI := fmt.Sprintf("http://localhost:%d%s", port, oauth.CallbackPath)

	ctx := cmd.Context()
	req, err := accountService.BeginConnect(ctx, connectAppID, redirectURI)
	if err != nil {
		return fmt.Errorf("failed to start authorization: %w", err)
	}

	server := oauth.NewCallbackServer(port, req.State)
	if err := server.Start(); err != nil {
		return err
	}
	defer func() { _ = server.Stop() }()

	cmd.Printf("Authorize %s access in your browser:\n  %s\n", req.Provider.DisplayName(), req.URL)
	if !connectNoBrowser {
		if err := oauth.OpenBrowser(req.URL); err != nil {
			cmd.Println("Could not open a browser; open the URL above manually.")
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	code, err := server.WaitForCode(waitCtx)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	account, err := accountService.CompleteConnect(ctx, user, *req, code)
	if err != nil {
		return fmt.Errorf("failed to connect account: %w", err)
	}

	cmd.Printf("Connected %s account %s (%s)\n", account.Provider.DisplayName(), account.Username, account.ID)
	return nil
}

func runAccountsDisconnect(cmd *cobra.Command, args []string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}

	if err := accountService.Disconnect(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to disconnect account: %w", err)
	}

	cmd.Printf("Disconnected account: %s\n", args[0])
	return nil
}
