package ytdlp

import (
	"strings"

	"github.com/momentumsubash/ytd/internal/services"
)

// classifyFailure maps yt-dlp output to a service error kind so the retry
// layer can separate transient conditions from permanent ones.
func classifyFailure(stage, operation, output string, err error) error {
	text := strings.ToLower(output)

	switch {
	case containsAny(text, "429", "too many requests", "rate limit", "rate-limit"):
		return services.Wrap(services.ErrRateLimited, stage, operation, "yt-dlp was rate limited", err)
	case containsAny(text, "timed out", "timeout"):
		return services.Wrap(services.ErrTimeout, stage, operation, "yt-dlp timed out", err)
	case containsAny(text, "connection reset", "network is unreachable", "temporarily unavailable", "service unavailable", "http error 5"):
		return services.Wrap(services.ErrTransient, stage, operation, "network failure during yt-dlp call", err)
	case containsAny(text, "private video", "members-only", "join this channel"):
		return services.Wrap(services.ErrForbidden, stage, operation, "members-only or private content", err)
	case containsAny(text, "available in your country", "geo restriction", "geo-restricted"):
		return services.Wrap(services.ErrForbidden, stage, operation, "content is geo-blocked", err)
	case containsAny(text, "video unavailable", "has been removed", "no longer available", "account associated with this video has been terminated"):
		return services.Wrap(services.ErrUnavailable, stage, operation, "content is unavailable", err)
	default:
		return services.Wrap(services.ErrExternalTool, stage, operation, "yt-dlp failed", err)
	}
}

func containsAny(text string, hints ...string) bool {
	for _, h := range hints {
		if strings.Contains(text, h) {
			return true
		}
	}
	return false
}
