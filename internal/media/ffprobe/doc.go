// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size)
//
// Inspect executes ffprobe against a media file and returns the parsed
// Result. Helper methods on Result expose stream counts and numeric
// duration/size values.
package ffprobe
