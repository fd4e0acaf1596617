// Package config loads, normalizes, and validates podscribe configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PODSCRIBE_LLM_API_KEY. The Config type centralizes every knob the pipeline
// and CLI need, so working directories, batch sizes, and external service
// credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
