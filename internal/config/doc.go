// Package config provides configuration loading and validation for the
// gateway. Configuration is read from a YAML file with ${VAR} and
// ${VAR:-default} environment variable substitution.
package config
