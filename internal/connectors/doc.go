// Package connectors holds what the provider adapters share: the Paginator
// that walks paginated collections, the rate limiter pacing it, Link header
// parsing, and Base, the embeddable adapter core with the common mapping
// rules and default "unsupported" webhook and status operations.
//
// The adapters themselves live in the github, gitlab and bitbucket
// subpackages.
package connectors
