// Package proofreading implements the workflow stage that corrects raw
// transcript cues in batches with an LLM.
package proofreading
