// Package config loads, normalizes, and validates cratedig configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for
// transport credentials such as PROWLARR_API_KEY. The Config type centralizes
// every knob the daemon and CLI need: slot count, queue capacity, retry
// policy, enabled transports, and discography staging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
