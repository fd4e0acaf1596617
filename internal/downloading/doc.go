// Package downloading implements the workflow stage that fetches episode
// audio with yt-dlp.
package downloading
