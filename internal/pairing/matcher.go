package pairing

import (
	"path/filepath"
	"sort"
	"strings"
)

// Config controls file classification and matching behaviour.
type Config struct {
	VideoExtensions []string
	AudioExtensions []string
	VideoSuffixes   []string
	AudioSuffixes   []string
	// Fuzzy enables progressive-truncation matching for candidates exact
	// matching left unpaired.
	Fuzzy bool
	// OutputExt is the extension given to derived output filenames.
	// Defaults to ".mp4".
	OutputExt string
}

// Unit is one logical media item carried through the pipeline: a video/audio
// pair or a single-sided remainder, identified by its stem.
type Unit struct {
	Stem       string
	Video      string
	Audio      string
	MatchLevel int
	OutputName string
}

// IsPair reports whether the unit has both sides.
func (u Unit) IsPair() bool {
	return u.Video != "" && u.Audio != ""
}

// Unmatched reasons.
const (
	ReasonAmbiguous = "ambiguous"
	ReasonDuplicate = "duplicate"
	ReasonEmptyStem = "empty stem"
)

// UnmatchedFile reports a file the matcher could not place, for operator
// visibility.
type UnmatchedFile struct {
	Name   string
	Reason string
}

// Result groups the outcome of a matching pass.
type Result struct {
	Pairs     []Unit
	VideoOnly []Unit
	AudioOnly []Unit
	Unmatched []UnmatchedFile
}

type candidate struct {
	name string
	stem string
	role Role
	used bool
}

// Match groups the given filenames into logical units. Files whose extension
// belongs to neither configured set are ignored. The input is sorted before
// matching so the outcome does not depend on directory listing order, and no
// file is consumed into more than one pair.
func Match(filenames []string, cfg Config) Result {
	sorted := make([]string, len(filenames))
	copy(sorted, filenames)
	sort.Strings(sorted)

	videoExts := extensionSet(cfg.VideoExtensions)
	audioExts := extensionSet(cfg.AudioExtensions)

	var result Result
	var videos, audios []*candidate

	for _, name := range sorted {
		ext := strings.ToLower(filepath.Ext(name))
		inVideo := videoExts[ext]
		inAudio := audioExts[ext]
		if !inVideo && !inAudio {
			continue
		}

		stem, role := ComputeStem(name, cfg.VideoSuffixes, cfg.AudioSuffixes)
		if stem == "" {
			result.Unmatched = append(result.Unmatched, UnmatchedFile{Name: name, Reason: ReasonEmptyStem})
			continue
		}

		// The role marker decides the side when present; otherwise the
		// extension set does. An extension valid for both sides with no
		// marker cannot be placed safely.
		if role == RoleUnknown {
			switch {
			case inVideo && !inAudio:
				role = RoleVideo
			case inAudio && !inVideo:
				role = RoleAudio
			default:
				result.Unmatched = append(result.Unmatched, UnmatchedFile{Name: name, Reason: ReasonAmbiguous})
				continue
			}
		}

		c := &candidate{name: name, stem: stem, role: role}
		if role == RoleVideo {
			videos = append(videos, c)
		} else {
			audios = append(audios, c)
		}
	}

	result = matchExact(videos, audios, cfg, result)
	if cfg.Fuzzy {
		result = matchFuzzy(videos, audios, cfg, result)
	}

	for _, v := range videos {
		if !v.used {
			result.VideoOnly = append(result.VideoOnly, newUnit(v.stem, v.name, "", 0, cfg))
		}
	}
	for _, a := range audios {
		if !a.used {
			result.AudioOnly = append(result.AudioOnly, newUnit(a.stem, "", a.name, 0, cfg))
		}
	}
	return result
}

// matchExact pairs candidates with identical stems. The first candidate per
// side wins a contested stem; later ones are surfaced as duplicates so no
// file silently disappears.
func matchExact(videos, audios []*candidate, cfg Config, result Result) Result {
	audioByStem := make(map[string]*candidate, len(audios))
	for _, a := range audios {
		if _, taken := audioByStem[a.stem]; taken {
			a.used = true
			result.Unmatched = append(result.Unmatched, UnmatchedFile{Name: a.name, Reason: ReasonDuplicate})
			continue
		}
		audioByStem[a.stem] = a
	}

	seenVideo := make(map[string]bool, len(videos))
	for _, v := range videos {
		if seenVideo[v.stem] {
			v.used = true
			result.Unmatched = append(result.Unmatched, UnmatchedFile{Name: v.name, Reason: ReasonDuplicate})
			continue
		}
		seenVideo[v.stem] = true

		a, ok := audioByStem[v.stem]
		if !ok || a.used {
			continue
		}
		v.used = true
		a.used = true
		result.Pairs = append(result.Pairs, newUnit(v.stem, v.name, a.name, 0, cfg))
	}
	return result
}

// matchFuzzy pairs leftovers whose stems share a truncated prefix. Each
// unpaired video takes the remaining audio with the lowest combined
// truncation depth; ties resolve to the earliest audio in sorted order. The
// resulting unit keeps the video's full stem so unit identities stay unique
// even when several pairs share a truncated prefix.
func matchFuzzy(videos, audios []*candidate, cfg Config, result Result) Result {
	for _, v := range videos {
		if v.used {
			continue
		}
		videoStems := CandidateStems(v.stem)

		bestAudio := -1
		bestCost := -1
		for ai, a := range audios {
			if a.used {
				continue
			}
			_, cost, ok := commonStem(videoStems, CandidateStems(a.stem))
			if !ok {
				continue
			}
			if bestCost == -1 || cost < bestCost {
				bestAudio = ai
				bestCost = cost
			}
		}
		if bestAudio == -1 {
			continue
		}

		a := audios[bestAudio]
		v.used = true
		a.used = true
		result.Pairs = append(result.Pairs, newUnit(v.stem, v.name, a.name, bestCost, cfg))
	}
	return result
}

// commonStem finds the most specific stem both truncation sequences share and
// the combined depth needed to reach it.
func commonStem(videoStems, audioStems []string) (string, int, bool) {
	depths := make(map[string]int, len(audioStems))
	for depth, stem := range audioStems {
		depths[stem] = depth
	}

	bestStem := ""
	bestCost := -1
	for vDepth, stem := range videoStems {
		aDepth, ok := depths[stem]
		if !ok {
			continue
		}
		cost := vDepth + aDepth
		if bestCost == -1 || cost < bestCost {
			bestStem = stem
			bestCost = cost
		}
	}
	if bestCost == -1 {
		return "", 0, false
	}
	return bestStem, bestCost, true
}

func newUnit(stem, video, audio string, level int, cfg Config) Unit {
	ext := cfg.OutputExt
	if ext == "" {
		ext = ".mp4"
	}
	return Unit{
		Stem:       stem,
		Video:      video,
		Audio:      audio,
		MatchLevel: level,
		OutputName: stem + ext,
	}
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}
