// Package publishing implements the workflow stage that delivers an approved
// episode to its configured targets: a filesystem Markdown export and an
// HTTP webhook.
package publishing
