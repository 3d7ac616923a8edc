// Package github implements the provider adapter for GitHub and GitHub
// Enterprise.
//
// # Listing
//
// The adapter lists the repositories the authenticated user can see,
// including owned, collaborator and organisation member repositories:
//
//   - GET /user/repos: every repository visible to the user
//   - GET /user/orgs: organisations the user belongs to
//   - GET /orgs/{login}/repos: repositories of one organisation
//
// Pages are JSON arrays; the next page is announced in the Link header.
//
// # Mapping
//
// Repository payloads are decoded with go-github's Repository type. The
// permissions.admin flag of the payload becomes the admin bit of the user's
// relation. Private repositories are cloned over SSH.
//
// # Hooks
//
// Webhooks and commit statuses go through the go-github client bound to the
// session's HTTP client, so token refresh applies to them too:
//
//   - SetupWebhook: POST /repos/{owner}/{repo}/hooks
//   - UpdateWebhook: PATCH /repos/{owner}/{repo}/hooks/{id}, recreating the
//     hook when GitHub no longer has it
//   - GetProviderData: finds the hook pointing at this deployment
//   - SendBuildStatus: POST /repos/{owner}/{repo}/statuses/{sha}
//
// # Enterprise
//
// Set the API URL to the instance's /api/v3 root and the web URL to its
// host; project URLs are matched against the web host.
package github
