package playlist

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

	"github.com/momentumsubash/ytd/internal/logging"
)

type document struct {
	Playlists map[string]State `json:"playlists"`
}

// Store provides durable, single-writer access to playlist states.
type Store struct {
	path      string
	logger    *slog.Logger
	mu        sync.RWMutex
	playlists map[string]State
}

// NewStore opens the playlist state file at path, starting from an empty
// state when the file is missing or unreadable. A parse failure is logged and
// degraded to an empty state; the next save replaces the bad file. If path is
// empty, states are kept in memory only and never persisted.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "playlist")

	s := &Store{
		path:      path,
		logger:    logger,
		playlists: make(map[string]State),
	}

	if path == "" {
		return s
	}

	if err := s.load(); err != nil {
		logger.Warn("failed to load playlist state file",
			logging.String(logging.FieldEventType, "playlist_state_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "playlist tracking will start empty"),
			logging.String(logging.FieldImpact, "playlists will restart from their configured start entry"))
		s.playlists = make(map[string]State)
	}

	return s
}

// Path returns the backing file path ("" for an in-memory store).
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of tracked playlists.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.playlists)
}

// Get returns a copy of the state for the given playlist ID.
func (s *Store) Get(id string) (State, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return State{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, found := s.playlists[id]
	if !found {
		return State{}, false
	}
	return st.clone(), true
}

// List returns copies of all tracked states sorted by playlist ID.
func (s *Store) List() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]State, 0, len(s.playlists))
	for _, st := range s.playlists {
		states = append(states, st.clone())
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].ID < states[j].ID
	})

	return states
}

// Put upserts a playlist state and persists the change before returning.
func (s *Store) Put(st State) error {
	st.ID = strings.TrimSpace(st.ID)
	if st.ID == "" {
		return errors.New("playlist ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.playlists[st.ID] = st.clone()

	if err := s.save(); err != nil {
		return fmt.Errorf("persist playlist state: %w", err)
	}

	s.logger.Debug("saved playlist state",
		logging.String(logging.FieldPlaylist, st.ID),
		logging.Int("cursor", st.Cursor),
		logging.Bool("completed", st.Completed))

	return nil
}

// load reads the playlist state file into memory.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read playlist state file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse playlist state file: %w", err)
	}

	s.playlists = make(map[string]State, len(doc.Playlists))
	for id, st := range doc.Playlists {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		st.ID = id // map key is authoritative
		s.playlists[id] = st
	}

	s.logger.Debug("loaded playlist state file",
		logging.Int("playlist_count", len(s.playlists)),
		logging.String("path", s.path))

	return nil
}

// save writes the playlist state file atomically. Map keys marshal in sorted
// order, so equal states produce identical documents.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(document{Playlists: s.playlists}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal playlist state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
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
