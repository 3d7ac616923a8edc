// Package domain defines the core entities of the remote source-control mirror.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Account / Credential / OAuthApp: who is connected, with which token
//   - RemoteRepository / RemoteOrganization: canonical mirror records
//   - RemoteRelation / OrganizationRelation: per-(user, account) access links
//   - Project / Integration / Build: inputs to webhook and status calls
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
