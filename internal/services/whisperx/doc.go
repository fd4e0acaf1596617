// Package whisperx invokes WhisperX through uvx to transcribe extracted audio
// slices and parses its JSON output into timed cues. Timing in the returned
// cues is relative to the slice; the transcription stage converts to absolute
// episode offsets before storing.
package whisperx
