// Package services defines shared utilities consumed by the workflow stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp episode IDs, stage names, and run
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into consistent outcomes (fatal vs retryable).
//   - Thin abstractions that make command execution from external tools
//     testable.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
