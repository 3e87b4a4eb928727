package main

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// displayLabel turns internal identifiers like "download" or a status such
// as "not_started" into human-facing labels like "Download" and "Not Started".
func displayLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	caser := cases.Title(language.Und)
	parts := strings.Split(value, "_")
	labels := parts[:0]
	for _, part := range parts {
		lower := strings.ToLower(strings.TrimSpace(part))
		if lower == "" {
			continue
		}
		labels = append(labels, caser.String(lower))
	}
	return strings.Join(labels, " ")
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div := int64(unit)
	exp := 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(v) / float64(div)
	return fmt.Sprintf("%.1f %ciB", value, "KMGTPEZY"[exp])
}
