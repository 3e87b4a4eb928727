// Package ffmpeg wraps ffmpeg invocations that mux a downloaded video
// stream and audio stream into a single container, plus ffprobe lookups
// used to verify and describe the produced file.
package ffmpeg
