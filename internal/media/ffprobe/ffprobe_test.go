package ffprobe

import "testing"

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestStreamCountsAreCaseInsensitive(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "Video"},
			{CodecType: "AUDIO"},
		},
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 1 {
		t.Fatalf("unexpected counts: video=%d audio=%d", result.VideoStreamCount(), result.AudioStreamCount())
	}
}
