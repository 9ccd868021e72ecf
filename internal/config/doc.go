// Package config loads the tokengate service configuration from YAML or TOML
// files, expanding ${VAR} references from the environment.
//
// The signing secret and token lifetime have no defaults; every other
// setting does.
package config
