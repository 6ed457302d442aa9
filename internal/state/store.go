// Package state persists per-session working state between hook invocations.
// The engine runs once per event and exits, so everything the turn/tool state
// machine needs to survive a restart lives here, one JSON file per session.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cctally/cctally/internal/domain"
)

// Store reads and writes session state files under a dedicated directory.
// One file per session keeps concurrently active sessions contention-free.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load returns the persisted state for sessionID, or fresh empty state if the
// session has never been seen.
func (s *Store) Load(sessionID string) (*domain.SessionState, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if os.IsNotExist(err) {
		return domain.NewSessionState(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var st domain.SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	if st.InFlight == nil {
		st.InFlight = make(map[string]domain.InFlightTool)
	}
	st.SessionID = sessionID
	return &st, nil
}

// Save durably persists the full state. The write goes through a temp file
// and rename so a crash mid-write never corrupts the previous state.
func (s *Store) Save(st *domain.SessionState) error {
	st.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	path := s.path(st.SessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace session state: %w", err)
	}
	return nil
}

// StaleSessions lists session IDs whose state file has not been touched for at
// least olderThan. State files are never deleted on Stop (some hosts fire Stop
// after every turn), so retention is an explicit, caller-driven operation.
func (s *Store) StaleSessions(olderThan time.Duration) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	var stale []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, strings.TrimSuffix(name, ".json"))
		}
	}
	return stale, nil
}

// Prune deletes state files for the given session IDs and returns how many
// were removed.
func (s *Store) Prune(sessionIDs []string) (int, error) {
	removed := 0
	for _, id := range sessionIDs {
		if err := os.Remove(s.path(id)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("failed to remove state for %s: %w", id, err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sanitizeID(sessionID)+".json")
}

// sanitizeID keeps session IDs safe to use as file names.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
