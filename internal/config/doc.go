// Package config loads the edgelink process configuration from TOML or YAML
// files, with credential overrides from the environment.
package config
