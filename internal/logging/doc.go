// Package logging provides slog-based structured logging for podscribe.
// Loggers carry a console or JSON handler chosen by configuration, and
// ContextFields lifts request-scoped identifiers (episode, stage, run)
// out of a context so every component logs them consistently.
package logging
