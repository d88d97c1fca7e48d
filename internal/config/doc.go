// Package config loads the example registry and resolves run settings.
//
// A registry file is YAML (.yaml, .yml) or TOML (.toml). Environment variables
// referenced as ${VAR} are expanded after .env and .env.local have been loaded;
// variables already set in the process environment win. Besides the required
// examples list the file may carry a settings table whose values sit between
// built-in defaults and command-line flags.
package config
