// Package bitbucket implements the provider adapter for Bitbucket Cloud
// (API 2.0).
//
// Workspaces map to organisations. Repository payloads carry no permission
// for the viewer, so the adapter also lists role=admin repositories through
// driven.AdminLister. Bitbucket has no commit status support here;
// SendBuildStatus returns domain.ErrUnsupported.
package bitbucket
