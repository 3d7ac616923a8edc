// Package file provides the file-based configuration adapters: the TOML
// ConfigStore, the settings loader layering environment overrides on top of
// it, and a watcher reloading settings when the file changes.
package file
