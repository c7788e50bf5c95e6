// Package config loads runtime configuration from defaults, an optional
// YAML file, and TRIOFLOW_-prefixed environment variables, in that order.
package config
