// Package gitlab implements the provider adapter for GitLab.com and
// self-managed GitLab instances (API v4).
//
// Projects map to repositories and groups to organisations. A user is an
// admin of a project when their project or group access level is at least
// Maintainer (40).
package gitlab
