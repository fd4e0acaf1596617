// Package transcription implements the workflow stage that slices episode
// audio and turns each slice into timed transcript cues via WhisperX.
package transcription
