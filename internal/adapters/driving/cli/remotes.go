package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var remotesCmd = &cobra.Command{
	Use:   "remotes",
	Short: "Show the mirrored repositories and organizations of a user",
}

var remotesReposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List the repositories a user can see",
	RunE:  runRemotesRepos,
}

var remotesOrgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "List the organizations a user belongs to",
	RunE:  runRemotesOrgs,
}

var reposAdminOnly bool

func init() {
	remotesReposCmd.Flags().BoolVar(&reposAdminOnly, "admin", false, "only repositories the user administers")

	remotesCmd.AddCommand(remotesReposCmd)
	remotesCmd.AddCommand(remotesOrgsCmd)
	rootCmd.AddCommand(remotesCmd)
}

func runRemotesRepos(cmd *cobra.Command, _ []string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}
	user, err := requireUser()
	if err != nil {
		return err
	}

	linked, err := accountService.Repositories(cmd.Context(), user)
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}
	if reposAdminOnly {
		kept := linked[:0]
		for _, l := range linked {
			if l.Relation.Admin {
				kept = append(kept, l)
			}
		}
		linked = kept
	}
	if outJSON {
		return printJSON(cmd, linked)
	}

	if len(linked) == 0 {
		cmd.Println("No repositories.")
		return nil
	}
	for i := range linked {
		repo := &linked[i].Repository
		flags := ""
		if repo.Private {
			flags += " private"
		}
		if linked[i].Relation.Admin {
			flags += " admin"
		}
		cmd.Printf("  %-9s  %s%s\n", repo.Provider, repo.FullName, flags)
	}
	return nil
}

func runRemotesOrgs(cmd *cobra.Command, _ []string) error {
	if accountService == nil {
		return errors.New("account service not configured")
	}
	user, err := requireUser()
	if err != nil {
		return err
	}

	orgs, err := accountService.Organizations(cmd.Context(), user)
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}
	if outJSON {
		return printJSON(cmd, orgs)
	}

	if len(orgs) == 0 {
		cmd.Println("No organizations.")
		return nil
	}
	for i := range orgs {
		cmd.Printf("  %-9s  %s (%s)\n", orgs[i].Provider, orgs[i].Slug, orgs[i].Name)
	}
	return nil
}
