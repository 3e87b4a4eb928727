// Package ytdlp wraps yt-dlp invocations for playlist listings and per-entry
// stream downloads. Failures are classified into the service error kinds so
// callers can tell a rate limit from a removed or members-only video.
package ytdlp
