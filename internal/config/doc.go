// Package config loads fold-client configuration from YAML, with
// ${VAR} environment expansion and duration-string parsing, plus named
// gateway profiles from a TOML file.
package config
