package domain

import (
	"testing"
	"time"
)

func TestSessionState_OpenTurnResetsAccumulators(t *testing.T) {
	st := NewSessionState("sess-1")
	now := time.Now().UTC()

	st.OpenTurn(now)
	assertEqual(t, "turn", 1, st.Turn)
	assertEqual(t, "turn open", true, st.TurnOpen)

	st.TrackTool("Bash", 10, now)
	st.TurnCostUSD = 0.5
	st.SessionCostUSD = 0.5

	st.OpenTurn(now.Add(time.Minute))
	assertEqual(t, "turn", 2, st.Turn)
	assertEqual(t, "tool count reset", 0, st.TurnToolCount)
	assertFloat(t, "turn cost reset", 0, st.TurnCostUSD)
	assertFloat(t, "session cost preserved", 0.5, st.SessionCostUSD)
	assertEqual(t, "session start unchanged", now, st.SessionStartedAt)
}

func TestSessionState_MatchToolLIFO(t *testing.T) {
	st := NewSessionState("sess-1")
	st.OpenTurn(time.Now().UTC())

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Second)

	st.TrackTool("Bash", 100, first)
	st.TrackTool("Read", 30, first)
	st.TrackTool("Bash", 200, second)

	tool, ok := st.MatchTool("Bash")
	if !ok {
		t.Fatal("expected a match")
	}
	assertEqual(t, "most recent Bash matched first", 200, tool.InputBytes)
	assertEqual(t, "started at", second, tool.StartedAt)

	tool, ok = st.MatchTool("Bash")
	if !ok {
		t.Fatal("expected second match")
	}
	assertEqual(t, "earlier Bash matched second", 100, tool.InputBytes)

	if _, ok := st.MatchTool("Bash"); ok {
		t.Error("expected no remaining Bash entries")
	}
	if _, ok := st.MatchTool("Grep"); ok {
		t.Error("expected no match for unseen tool")
	}
}

func TestSessionState_ToolKeysNeverReused(t *testing.T) {
	st := NewSessionState("sess-1")
	st.OpenTurn(time.Now().UTC())

	st.TrackTool("Bash", 1, time.Now())
	if _, ok := st.MatchTool("Bash"); !ok {
		t.Fatal("expected match")
	}
	key := st.TrackTool("Bash", 2, time.Now())

	// The counter advances even after entries are matched and removed.
	assertEqual(t, "second key", "1", key)
	assertEqual(t, "next key", 2, st.NextToolKey)
}
