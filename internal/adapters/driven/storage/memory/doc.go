// Package memory provides in-memory implementations of the driven store
// ports. They back unit tests and the --memory mode of the CLI.
package memory
