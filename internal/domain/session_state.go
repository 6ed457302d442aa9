package domain

import (
	"strconv"
	"time"
)

// InFlightTool is a tool call that has started but not yet finished.
type InFlightTool struct {
	ToolName   string    `json:"tool_name"`
	Turn       int       `json:"turn"`
	StartedAt  time.Time `json:"started_at"`
	InputBytes int       `json:"input_bytes"`
}

// SessionState is the per-session working set persisted between events.
// Turn is monotonically non-decreasing for the lifetime of the state;
// TurnToolCount and TurnCostUSD reset to zero exactly when a new turn opens.
type SessionState struct {
	SessionID        string                  `json:"session_id"`
	SessionStartedAt time.Time               `json:"session_started_at"`
	Turn             int                     `json:"turn"`
	TurnOpen         bool                    `json:"turn_open"`
	TurnStartedAt    time.Time               `json:"turn_started_at"`
	TurnToolCount    int                     `json:"turn_tool_count"`
	TurnCostUSD      float64                 `json:"turn_cost_usd"`
	SessionCostUSD   float64                 `json:"session_cost_usd"`
	NextToolKey      int                     `json:"next_tool_key"`
	InFlight         map[string]InFlightTool `json:"in_flight"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// NewSessionState returns empty state for a session never seen before.
func NewSessionState(sessionID string) *SessionState {
	return &SessionState{
		SessionID: sessionID,
		InFlight:  make(map[string]InFlightTool),
	}
}

// OpenTurn finalizes nothing itself; it advances the turn counter and resets
// the per-turn accumulators. The caller is responsible for emitting the
// previous turn's record first.
func (s *SessionState) OpenTurn(now time.Time) {
	s.Turn++
	s.TurnOpen = true
	s.TurnStartedAt = now
	s.TurnToolCount = 0
	s.TurnCostUSD = 0
	if s.SessionStartedAt.IsZero() {
		s.SessionStartedAt = now
	}
}

// TrackTool stores an in-flight tool call under a fresh key from the
// per-session monotonic counter. Keys are never reused, so concurrent or
// sequential calls to the same tool name stay distinguishable.
func (s *SessionState) TrackTool(name string, inputBytes int, now time.Time) string {
	if s.InFlight == nil {
		s.InFlight = make(map[string]InFlightTool)
	}
	key := strconv.Itoa(s.NextToolKey)
	s.NextToolKey++
	s.TurnToolCount++
	s.InFlight[key] = InFlightTool{
		ToolName:   name,
		Turn:       s.Turn,
		StartedAt:  now,
		InputBytes: inputBytes,
	}
	return key
}

// MatchTool finds the most recently started unmatched entry with the given
// tool name and removes it. Matching is last-in-first-out: nested calls to
// the same tool are assumed not to interleave out of order.
func (s *SessionState) MatchTool(name string) (InFlightTool, bool) {
	bestKey := -1
	for k, t := range s.InFlight {
		if t.ToolName != name {
			continue
		}
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		if n > bestKey {
			bestKey = n
		}
	}
	if bestKey < 0 {
		return InFlightTool{}, false
	}
	key := strconv.Itoa(bestKey)
	tool := s.InFlight[key]
	delete(s.InFlight, key)
	return tool, true
}
