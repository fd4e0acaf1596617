// Package store persists the pipeline's durable state in SQLite: episodes and
// their workflow status, virtual audio segments, transcript cues, per-language
// translations with the dual-text edit model, chapters, and publication
// records.
//
// All state mutation funnels through this package. Work units (segments,
// translations) move through pending, processing, completed, and failed, and
// a completed unit never transitions backwards except through the explicit
// reset operations. Status flips that carry data (transcribed cues, generated
// translations) commit in a single transaction with that data.
//
// Treat this package as the single source of truth for pipeline semantics;
// schema changes go into schema.sql and bump schemaVersion.
package store
