// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. It implements every store interface through a single database connection:
//
//   - AppStore, AccountStore, CredentialsStore: connected accounts and tokens
//   - RemoteStore: canonical repositories/organizations and relation rows
//   - ProjectStore: projects, integrations and builds
//   - SchedulerStore: scheduled task state and history
//
// # Schema
//
// The schema is managed through versioned NNN_name.up.sql migrations embedded
// from the migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.remotesync/data/remotesync.db
//
// # Concurrency
//
// Get-or-create operations are single INSERT ... ON CONFLICT statements, so
// concurrent sync passes never create duplicate canonical or relation rows.
package sqlite
