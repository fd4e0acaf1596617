// Package media wraps the external audio tooling the pipeline shells out to:
// yt-dlp for fetching episode audio and ffmpeg for cutting the virtual
// segment slices handed to transcription.
package media
