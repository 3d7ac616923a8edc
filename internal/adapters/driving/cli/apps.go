package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage OAuth app registrations",
	Long: `Add, list and remove the OAuth applications accounts connect through.

Register one app per provider (or per self-hosted instance) with the client
credentials from the provider's developer settings. Use the printed app ID
with 'remotesync accounts connect --app'.

Examples:
  remotesync apps add --provider github --client-id xxx --client-secret yyy
  remotesync apps add --provider gitlab --auth-url https://gitlab.internal/oauth/authorize \
    --token-url https://gitlab.internal/oauth/token
  remotesync apps list`,
}

var appsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an OAuth app",
	Long: `Register an OAuth app. Missing values are prompted for; the client secret
is read without echo when stdin is a terminal.`,
	RunE: runAppsAdd,
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered OAuth apps",
	RunE:  runAppsList,
}

var appsRemoveCmd = &cobra.Command{
	Use:   "remove [app-id]",
	Short: "Remove an OAuth app",
	Long:  `Remove an OAuth app. Apps still used by a connected account cannot be removed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAppsRemove,
}

var (
	appAddName         string
	appAddProvider     string
	appAddClientID     string
	appAddClientSecret string
	appAddScopes       string
	appAddAuthURL      string
	appAddTokenURL     string
)

func init() {
	appsAddCmd.Flags().StringVar(&appAddName, "name", "", "display name")
	appsAddCmd.Flags().StringVar(&appAddProvider, "provider", "", "provider (github, gitlab, bitbucket)")
	appsAddCmd.Flags().StringVar(&appAddClientID, "client-id", "", "OAuth client ID")
	appsAddCmd.Flags().StringVar(&appAddClientSecret, "client-secret", "", "OAuth client secret")
	appsAddCmd.Flags().StringVar(&appAddScopes, "scopes", "", "comma-separated scopes (provider defaults if empty)")
	appsAddCmd.Flags().StringVar(&appAddAuthURL, "auth-url", "", "authorization endpoint override")
	appsAddCmd.Flags().StringVar(&appAddTokenURL, "token-url", "", "token endpoint override")

	appsCmd.AddCommand(appsAddCmd)
	appsCmd.AddCommand(appsListCmd)
	appsCmd.AddCommand(appsRemoveCmd)
	rootCmd.AddCommand(appsCmd)
}

func runAppsAdd(cmd *cobra.Command, _ []string) error {
	if appService == nil {
		return errors.New("app service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	provider := domain.ProviderType(strings.ToLower(appAddProvider))
	if provider == "" {
		cmd.Println("Select provider:")
		for i, p := range domain.AllProviders() {
			cmd.Printf("  %d. %s\n", i+1, p.DisplayName())
		}
		cmd.Print("Enter choice [1]: ")
		provider = chooseProvider(readLine(reader))
	}
	if !provider.IsValid() {
		return fmt.Errorf("unknown provider %q", provider)
	}

	name := appAddName
	if name == "" {
		name = provider.DisplayName() + " OAuth App"
	}

	clientID := appAddClientID
	if clientID == "" {
		cmd.Print("Client ID: ")
		clientID = readLine(reader)
	}
	secret := appAddClientSecret
	if secret == "" {
		cmd.Print("Client secret: ")
		secret = readSecret(cmd, reader)
		cmd.Println()
	}

	now := time.Now()
	app := domain.OAuthApp{
		ID:           uuid.New().String(),
		Name:         name,
		Provider:     provider,
		ClientID:     clientID,
		ClientSecret: secret,
		Scopes:       splitList(appAddScopes),
		AuthURL:      appAddAuthURL,
		TokenURL:     appAddTokenURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := appService.Save(cmd.Context(), app); err != nil {
		return fmt.Errorf("failed to save app: %w", err)
	}

	cmd.Printf("OAuth app registered: %s\n", app.ID)
	return nil
}

func runAppsList(cmd *cobra.Command, _ []string) error {
	if appService == nil {
		return errors.New("app service not configured")
	}

	apps, err := appService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list apps: %w", err)
	}
	if outJSON {
		for i := range apps {
			apps[i].ClientSecret = maskSecret(apps[i].ClientSecret)
		}
		return printJSON(cmd, apps)
	}

	if len(apps) == 0 {
		cmd.Println("No OAuth apps registered.")
		return nil
	}
	for i := range apps {
		app := &apps[i]
		cmd.Printf("  %s\n", app.ID)
		cmd.Printf("    Name: %s\n", app.Name)
		cmd.Printf("    Provider: %s\n", app.Provider.DisplayName())
		cmd.Printf("    Client ID: %s\n", app.ClientID)
		cmd.Printf("    Client secret: %s\n", maskSecret(app.ClientSecret))
		cmd.Printf("    Scopes: %s\n", strings.Join(app.EffectiveScopes(), ", "))
		if app.AuthURL != "" || app.TokenURL != "" {
			ep := app.Endpoint()
			cmd.Printf("    Endpoints: %s, %s\n", ep.AuthURL, ep.TokenURL)
		}
	}
	return nil
}

func runAppsRemove(cmd *cobra.Command, args []string) error {
	if appService == nil {
		return errors.New("app service not configured")
	}

	id := args[0]
	if err := appService.Delete(cmd.Context(), id); err != nil {
		if errors.Is(err, domain.ErrAppInUse) {
			return fmt.Errorf("app %s is used by connected accounts; disconnect them first", id)
		}
		return fmt.Errorf("failed to remove app: %w", err)
	}

	cmd.Printf("Removed OAuth app: %s\n", id)
	return nil
}

func chooseProvider(input string) domain.ProviderType {
	providers := domain.AllProviders()
	if input == "" {
		return providers[0]
	}
	for i, p := range providers {
		if input == fmt.Sprint(i+1) || strings.EqualFold(input, string(p)) {
			return p
		}
	}
	return domain.ProviderType(input)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
