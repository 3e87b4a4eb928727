// Package progress persists per-stage outcomes for logical units so that
// interrupted runs can resume without redoing finished work.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/momentumsubash/ytd/internal/logging"
)

// Stage names one phase of the pipeline.
type Stage string

const (
	StageDownload Stage = "download"
	StageMerge    Stage = "merge"
	StageUpload   Stage = "upload"
)

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageDownload, StageMerge, StageUpload}
}

func stageRank(stage Stage) int {
	switch stage {
	case StageDownload:
		return 0
	case StageMerge:
		return 1
	case StageUpload:
		return 2
	default:
		return 3
	}
}

// Status describes the recorded outcome of one stage for one stem.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusSkipped, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends a unit's journey through a stage.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusSkipped, StatusFailed:
		return true
	default:
		return false
	}
}

// Metadata carries the stage-specific facts recorded alongside an outcome.
type Metadata struct {
	Playlist        string  `json:"playlist,omitempty"`
	SizeBytes       int64   `json:"size_bytes,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Hash            string  `json:"sha256,omitempty"`
	Bucket          string  `json:"bucket,omitempty"`
	StorageKey      string  `json:"storage_key,omitempty"`
	Detail          string  `json:"detail,omitempty"`
}

// Record is one persisted outcome, keyed by (stem, stage).
type Record struct {
	Stem      string    `json:"stem"`
	Stage     Stage     `json:"stage"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Metadata
}

// Fingerprint identifies file content so stale completion records can be
// detected when the file on disk has changed since the outcome was saved.
type Fingerprint struct {
	SizeBytes int64
	Hash      string
}

type document struct {
	Stems map[string]map[Stage]Record `json:"stems"`
}

// Store provides durable, single-writer access to per-stage outcomes.
type Store struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	records map[string]map[Stage]Record // stem -> stage -> record
}

// NewStore opens the progress file at path, starting from an empty state when
// the file is missing or unreadable. A parse failure is logged and degraded to
// an empty state rather than surfaced; the next save replaces the bad file.
// If path is empty, records are kept in memory only and never persisted.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "progress")

	s := &Store{
		path:    path,
		logger:  logger,
		records: make(map[string]map[Stage]Record),
	}

	if path == "" {
		return s
	}

	if err := s.load(); err != nil {
		logger.Warn("failed to load progress file",
			logging.String(logging.FieldEventType, "progress_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "progress tracking will start empty"),
			logging.String(logging.FieldImpact, "previously completed work may be redone"))
		s.records = make(map[string]map[Stage]Record)
	}

	return s
}

// Path returns the backing file path ("" for an in-memory store).
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of recorded outcomes across all stages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, stages := range s.records {
		n += len(stages)
	}
	return n
}

// Lookup returns the record for the given stem and stage if one exists.
func (s *Store) Lookup(stem string, stage Stage) (Record, bool) {
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return Record{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, found := s.records[stem][stage]
	return rec, found
}

// List returns all records sorted by stem, then by stage order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.records))
	for _, stages := range s.records {
		for _, rec := range stages {
			records = append(records, rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Stem != records[j].Stem {
			return records[i].Stem < records[j].Stem
		}
		ri, rj := stageRank(records[i].Stage), stageRank(records[j].Stage)
		if ri != rj {
			return ri < rj
		}
		return records[i].Stage < records[j].Stage
	})

	return records
}

// RecordOutcome stores the outcome for one stem at one stage and persists the
// change before returning. A record that already reached completed is never
// replaced by a weaker status; such attempts are logged and ignored. Replacing
// completed with completed refreshes the stored metadata.
func (s *Store) RecordOutcome(stem string, stage Stage, status Status, meta Metadata) error {
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return errors.New("stem cannot be empty")
	}
	stage = Stage(strings.TrimSpace(string(stage)))
	if stage == "" {
		return errors.New("stage cannot be empty")
	}
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, found := s.records[stem][stage]; found {
		if existing.Status == StatusCompleted && status != StatusCompleted {
			s.logger.Warn("ignoring downgrade of completed record",
				logging.String(logging.FieldEventType, "progress_downgrade_ignored"),
				logging.String(logging.FieldStem, stem),
				logging.String(logging.FieldStage, string(stage)),
				logging.String("requested_status", string(status)),
				logging.String(logging.FieldImpact, "record keeps its completed status"))
			return nil
		}
	}

	if s.records[stem] == nil {
		s.records[stem] = make(map[Stage]Record)
	}
	s.records[stem][stage] = Record{
		Stem:      stem,
		Stage:     stage,
		Status:    status,
		UpdatedAt: time.Now().UTC(),
		Metadata:  meta,
	}

	if err := s.save(); err != nil {
		return fmt.Errorf("persist progress: %w", err)
	}

	s.logger.Debug("recorded stage outcome",
		logging.String(logging.FieldStem, stem),
		logging.String(logging.FieldStage, string(stage)),
		logging.String("status", string(status)))

	return nil
}

// IsCompleted reports whether the stem already completed the stage. When a
// fingerprint is supplied, the stored size and hash are checked against it;
// a mismatch means the file changed since the record was written, so the stem
// is treated as not completed and a warning is logged.
func (s *Store) IsCompleted(stem string, stage Stage, fp *Fingerprint) bool {
	rec, found := s.Lookup(stem, stage)
	if !found || rec.Status != StatusCompleted {
		return false
	}
	if fp == nil {
		return true
	}

	if rec.SizeBytes > 0 && fp.SizeBytes > 0 && rec.SizeBytes != fp.SizeBytes {
		s.warnFingerprintMismatch(stem, stage, "size")
		return false
	}
	if rec.Hash != "" && fp.Hash != "" && !strings.EqualFold(rec.Hash, fp.Hash) {
		s.warnFingerprintMismatch(stem, stage, "hash")
		return false
	}

	return true
}

func (s *Store) warnFingerprintMismatch(stem string, stage Stage, what string) {
	s.logger.Warn("completed record no longer matches file",
		logging.String(logging.FieldEventType, "progress_fingerprint_mismatch"),
		logging.String(logging.FieldStem, stem),
		logging.String(logging.FieldStage, string(stage)),
		logging.String("mismatch", what),
		logging.String(logging.FieldErrorHint, "file content changed since the outcome was recorded"),
		logging.String(logging.FieldImpact, "unit is eligible for reprocessing"))
}

// load reads the progress file into memory.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read progress file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse progress file: %w", err)
	}

	s.records = make(map[string]map[Stage]Record, len(doc.Stems))
	for stem, stages := range doc.Stems {
		stem = strings.TrimSpace(stem)
		if stem == "" || len(stages) == 0 {
			continue
		}
		for stage, rec := range stages {
			// Map keys are authoritative; older documents may omit the
			// redundant fields inside the record.
			rec.Stem = stem
			rec.Stage = stage
			if rec.Status == "" {
				rec.Status = StatusPending
			}
			if s.records[stem] == nil {
				s.records[stem] = make(map[Stage]Record)
			}
			s.records[stem][stage] = rec
		}
	}

	s.logger.Debug("loaded progress file",
		logging.Int("record_count", s.Len()),
		logging.String("path", s.path))

	return nil
}

// save writes the progress file atomically. Map keys marshal in sorted order,
// so equal states produce identical documents.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(document{Stems: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create progress directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
