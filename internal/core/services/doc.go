// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The sync engine in sync.go is the heart of the module: it mirrors what
// each connected account can see and reconciles the user's relations.
package services
