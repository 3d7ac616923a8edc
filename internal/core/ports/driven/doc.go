// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - AppStore, AccountStore, CredentialsStore: who is connected and how
//   - RemoteStore: canonical repository/organization records and relation rows
//   - ProjectStore: projects, integrations and builds (hook/status inputs)
//   - SessionFactory / Session: authenticated HTTP sessions per account
//   - Paginator: walks a provider collection across pages
//   - Provider: one adapter per source-control host
//   - Authorizer: authorization-code exchange
//   - SchedulerStore, ConfigStore: scheduler state and configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
