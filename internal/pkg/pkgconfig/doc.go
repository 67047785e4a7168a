// Package pkgconfig exposes configuration through the Config interface, backed
// by Viper. Values come from the YAML file, fall back to defaults supplied by
// the caller, and can be overridden with CHEMVIS_* environment variables.
package pkgconfig
