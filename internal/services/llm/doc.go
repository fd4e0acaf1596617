// Package llm wraps an OpenRouter-compatible chat completion endpoint with
// JSON-only responses, bounded retry with exponential backoff, Retry-After
// handling, and a tolerant decoder for the formatting quirks models produce.
package llm
