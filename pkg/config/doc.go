// Package config defines the themis runtime configuration: YAML file
// loading, defaults, THEMIS_* environment overrides and validation.
package config
