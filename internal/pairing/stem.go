package pairing

import (
	"path/filepath"
	"strings"
)

// Role identifies which side of a logical unit a file belongs to.
type Role int

const (
	RoleUnknown Role = iota
	RoleVideo
	RoleAudio
)

func (r Role) String() string {
	switch r {
	case RoleVideo:
		return "video"
	case RoleAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// separatorCutset holds the delimiter characters trimmed from stem edges and
// used as truncation boundaries.
const separatorCutset = "_-. "

// ComputeStem canonicalizes a filename into its stem: the extension is
// removed, then a trailing role marker (matched case-insensitively against
// the configured suffix lists), then trailing separator characters. The
// detected role is returned alongside; RoleUnknown means no marker was
// present.
func ComputeStem(name string, videoSuffixes, audioSuffixes []string) (string, Role) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	lowered := strings.ToLower(base)

	role := RoleUnknown
	for _, suffix := range videoSuffixes {
		if suffix != "" && strings.HasSuffix(lowered, suffix) {
			base = base[:len(base)-len(suffix)]
			role = RoleVideo
			break
		}
	}
	if role == RoleUnknown {
		for _, suffix := range audioSuffixes {
			if suffix != "" && strings.HasSuffix(lowered, suffix) {
				base = base[:len(base)-len(suffix)]
				role = RoleAudio
				break
			}
		}
	}

	return strings.TrimRight(base, separatorCutset), role
}

// CandidateStems generates the descending sequence of stems obtained by
// progressively truncating at delimiter boundaries, most specific first. The
// full stem is always the first element (truncation depth zero).
//
//	CandidateStems("talk_part1_take2") = ["talk_part1_take2", "talk_part1", "talk"]
func CandidateStems(stem string) []string {
	stem = strings.TrimRight(stem, separatorCutset)
	if stem == "" {
		return nil
	}

	candidates := []string{stem}
	current := stem
	for {
		cut := strings.LastIndexAny(current, separatorCutset)
		if cut <= 0 {
			break
		}
		current = strings.TrimRight(current[:cut], separatorCutset)
		if current == "" {
			break
		}
		candidates = append(candidates, current)
	}
	return candidates
}
