package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_LoadMissingReturnsEmptyState(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	st, err := store.Load("never-seen")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "session id", "never-seen", st.SessionID)
	assertEqual(t, "turn", 0, st.Turn)
	if st.InFlight == nil {
		t.Error("expected initialized in-flight map")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	st, _ := store.Load("sess-1")
	st.OpenTurn(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	st.TrackTool("Bash", 42, time.Date(2026, 3, 1, 9, 0, 5, 0, time.UTC))
	st.SessionCostUSD = 1.25

	if err := store.Save(st); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load("sess-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "turn", 1, loaded.Turn)
	assertEqual(t, "turn open", true, loaded.TurnOpen)
	assertEqual(t, "tool count", 1, loaded.TurnToolCount)
	assertEqual(t, "next tool key", 1, loaded.NextToolKey)
	assertEqual(t, "session cost", 1.25, loaded.SessionCostUSD)

	tool, ok := loaded.MatchTool("Bash")
	if !ok {
		t.Fatal("expected in-flight Bash entry to survive the round trip")
	}
	assertEqual(t, "input bytes", 42, tool.InputBytes)
}

func TestStore_SanitizesSessionIDs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	st, _ := store.Load("../evil/../../id")
	if err := store.Save(st); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	assertEqual(t, "file count", 1, len(entries))
	if filepath.Dir(filepath.Join(dir, entries[0].Name())) != dir {
		t.Errorf("state file escaped the state dir: %s", entries[0].Name())
	}
}

func TestStore_StaleSessionsAndPrune(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	for _, id := range []string{"old-1", "old-2", "fresh"} {
		st, _ := store.Load(id)
		if err := store.Save(st); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	// Age two of the files past the cutoff.
	past := time.Now().Add(-48 * time.Hour)
	for _, id := range []string{"old-1", "old-2"} {
		if err := os.Chtimes(filepath.Join(dir, id+".json"), past, past); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}
	}

	stale, err := store.StaleSessions(24 * time.Hour)
	if err != nil {
		t.Fatalf("StaleSessions failed: %v", err)
	}
	assertEqual(t, "stale count", 2, len(stale))

	removed, err := store.Prune(stale)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	assertEqual(t, "removed count", 2, removed)

	entries, _ := os.ReadDir(dir)
	assertEqual(t, "remaining files", 1, len(entries))
	assertEqual(t, "remaining file", "fresh.json", entries[0].Name())
}

func assertEqual[T comparable](t *testing.T, name string, expected, actual T) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", name, expected, actual)
	}
}
