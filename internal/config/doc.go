// Package config loads cratedigger's TOML configuration, applies defaults and
// environment overrides, and validates the result.
package config
