// Package tracker advances the per-session turn/tool state machine and emits
// ledger records. Each hook invocation handles exactly one event: state is
// loaded, updated, and persisted around it, so successive events survive
// process restarts in between.
package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/cctally/cctally/internal/domain"
	"github.com/cctally/cctally/internal/gitinfo"
	"github.com/cctally/cctally/internal/ledger"
	"github.com/cctally/cctally/internal/parser"
	"github.com/cctally/cctally/internal/state"
)

// RepoSource supplies repository facts for session and commit records.
type RepoSource interface {
	Resolve(cwd string) gitinfo.Context
	CommitStats(cwd string) (*gitinfo.CommitStats, error)
}

// Tracker wires the state store, ledger writer, pricing table, and repository
// context source into the event-to-record pipeline.
type Tracker struct {
	Ledger  *ledger.Writer
	States  *state.Store
	Repo    RepoSource
	Pricing *domain.PricingTable

	// Now is replaceable in tests.
	Now func() time.Time
}

func New(w *ledger.Writer, s *state.Store, repo RepoSource, pricing *domain.PricingTable) *Tracker {
	return &Tracker{
		Ledger:  w,
		States:  s,
		Repo:    repo,
		Pricing: pricing,
		Now:     time.Now,
	}
}

// HandlePrompt opens a new turn, finalizing the previous one first. The turn
// boundary is persisted before the prompt classification is emitted so a
// crash mid-turn cannot lose it.
func (t *Tracker) HandlePrompt(event *domain.UserPromptSubmitInput) error {
	st, err := t.States.Load(event.SessionID)
	if err != nil {
		return err
	}
	now := t.Now().UTC()

	if st.TurnOpen {
		if err := t.finalizeTurn(st, now, false); err != nil {
			return err
		}
	}

	st.OpenTurn(now)
	if err := t.States.Save(st); err != nil {
		return err
	}

	cls := domain.ClassifyPrompt(event.Prompt)
	return t.Ledger.AppendPrompt(&domain.PromptClassification{
		SessionID:    event.SessionID,
		Turn:         st.Turn,
		Category:     cls.Category,
		Subcategory:  cls.Subcategory,
		PromptLength: len(event.Prompt),
		Timestamp:    now,
	})
}

// HandleToolStart records an in-flight tool call under a fresh monotonic key.
func (t *Tracker) HandleToolStart(event *domain.PreToolUseInput) error {
	st, err := t.States.Load(event.SessionID)
	if err != nil {
		return err
	}

	st.TrackTool(event.ToolName, len(event.ToolInput), t.Now().UTC())
	return t.States.Save(st)
}

// HandleToolEnd matches the completion against the most recently started
// in-flight call with the same tool name and emits one tool invocation row.
// An unmatched completion is dropped with a warning: losing one row beats
// failing the event.
func (t *Tracker) HandleToolEnd(event *domain.PostToolUseInput) error {
	st, err := t.States.Load(event.SessionID)
	if err != nil {
		return err
	}
	now := t.Now().UTC()

	tool, ok := st.MatchTool(event.ToolName)
	if !ok {
		fmt.Fprintf(os.Stderr, "warning: no matching tool start for %s in session %s, dropping completion\n",
			event.ToolName, event.SessionID)
		return nil
	}

	success := event.Success == nil || *event.Success
	inv := &domain.ToolInvocation{
		SessionID:   event.SessionID,
		Turn:        tool.Turn,
		ToolName:    tool.ToolName,
		StartedAt:   tool.StartedAt,
		EndedAt:     now,
		Success:     success,
		DurationMs:  now.Sub(tool.StartedAt).Milliseconds(),
		InputBytes:  tool.InputBytes,
		OutputBytes: len(event.ToolResponse),
	}
	if err := t.Ledger.AppendTool(inv); err != nil {
		return err
	}

	if event.ToolName == "Bash" && success {
		t.recordGitActivity(event, tool.Turn, now)
	}

	return t.States.Save(st)
}

// recordGitActivity inspects a finished Bash command for git usage. Failures
// here are collaborator failures: warn and move on.
func (t *Tracker) recordGitActivity(event *domain.PostToolUseInput, turn int, now time.Time) {
	var input struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(event.ToolInput, &input); err != nil || input.Command == "" {
		return
	}

	verb, isCommit, ok := gitinfo.ParseGitCommand(input.Command)
	if !ok {
		return
	}

	repo := t.Repo.Resolve(event.Cwd)

	if !isCommit {
		op := &domain.GitOperation{
			SessionID: event.SessionID,
			Turn:      turn,
			Operation: verb,
			Branch:    repo.Branch,
			Timestamp: now,
		}
		if err := t.Ledger.AppendGitOperation(op); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record git operation: %v\n", err)
		}
		return
	}

	stats, err := t.Repo.CommitStats(event.Cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to read commit stats: %v\n", err)
		return
	}
	commit := &domain.Commit{
		SessionID:         event.SessionID,
		Turn:              turn,
		Hash:              stats.Hash,
		Branch:            repo.Branch,
		Author:            stats.Author,
		FilesChanged:      stats.FilesChanged,
		Insertions:        stats.Insertions,
		Deletions:         stats.Deletions,
		TotalLinesChanged: stats.TotalLinesChanged,
		Timestamp:         now,
	}
	if err := t.Ledger.AppendCommit(commit); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record commit: %v\n", err)
	}
}

// HandleCompact emits a compaction record tagged with the currently open
// turn. It is independent of turn finalization and changes no state.
func (t *Tracker) HandleCompact(event *domain.PreCompactInput) error {
	st, err := t.States.Load(event.SessionID)
	if err != nil {
		return err
	}

	reduction := event.TokensBefore - event.TokensAfter
	var pct float64
	if event.TokensBefore > 0 {
		pct = float64(reduction) * 100 / float64(event.TokensBefore)
	}

	return t.Ledger.AppendCompaction(&domain.Compaction{
		SessionID:    event.SessionID,
		Turn:         st.Turn,
		Timestamp:    t.Now().UTC(),
		TokensBefore: event.TokensBefore,
		TokensAfter:  event.TokensAfter,
		Reduction:    reduction,
		ReductionPct: pct,
		CompactType:  event.CompactType,
		Trigger:      event.Trigger,
	})
}

// HandleStop records the transcript's last usage entry as a cost record,
// finalizes the open turn, and appends a terminal session record carrying
// the cumulative cost accumulated in state. State is persisted last and
// never deleted: some hosts fire Stop after every turn and the session can
// always resume.
func (t *Tracker) HandleStop(event *domain.StopInput) error {
	if event.StopHookActive {
		// This stop was triggered by a stop hook; bail out to avoid loops.
		return nil
	}

	st, err := t.States.Load(event.SessionID)
	if err != nil {
		return err
	}
	now := t.Now().UTC()

	if event.TranscriptPath != "" {
		if err := t.recordCost(st, event.TranscriptPath, now); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record transcript cost: %v\n", err)
		}
	}

	interrupted := len(st.InFlight) > 0
	if st.TurnOpen {
		if err := t.finalizeTurn(st, now, interrupted); err != nil {
			return err
		}
	}

	repo := t.Repo.Resolve(event.Cwd)
	startedAt := st.SessionStartedAt
	if startedAt.IsZero() {
		startedAt = now
	}
	session := &domain.Session{
		ID:           event.SessionID,
		UserName:     repo.UserName,
		UserEmail:    repo.UserEmail,
		RepoURL:      repo.RemoteURL,
		RepoName:     repo.RepoName,
		Branch:       repo.Branch,
		HeadCommit:   repo.HeadCommit,
		StartedAt:    startedAt,
		EndedAt:      now,
		TurnCount:    st.Turn,
		TotalCostUSD: st.SessionCostUSD,
		Interrupted:  interrupted,
	}
	if err := t.Ledger.AppendSession(session); err != nil {
		return err
	}

	return t.States.Save(st)
}

// recordCost prices the transcript's most recent usage entry and adds it to
// the turn-scoped and cumulative session costs. Deliberately last-entry-only,
// not a sum of entries since the previous stop.
func (t *Tracker) recordCost(st *domain.SessionState, transcriptPath string, now time.Time) error {
	entry, err := parser.LastUsage(transcriptPath)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	pricing := t.Pricing.Lookup(entry.Model)
	b := pricing.CalculateBreakdown(entry.InputTokens, entry.OutputTokens, entry.CacheReadTokens, entry.CacheWriteTokens)

	messageID := entry.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}
	timestamp := entry.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}

	cost := &domain.CostRecord{
		SessionID:         st.SessionID,
		Turn:              st.Turn,
		MessageID:         messageID,
		Model:             entry.Model,
		InputTokens:       entry.InputTokens,
		OutputTokens:      entry.OutputTokens,
		CacheWriteTokens:  entry.CacheWriteTokens,
		CacheReadTokens:   entry.CacheReadTokens,
		InputCostUSD:      b.Input,
		OutputCostUSD:     b.Output,
		CacheWriteCostUSD: b.CacheWrite,
		CacheReadCostUSD:  b.CacheRead,
		TotalCostUSD:      b.Total,
		Timestamp:         timestamp,
	}
	if err := t.Ledger.AppendCost(cost); err != nil {
		return err
	}

	st.TurnCostUSD += b.Total
	st.SessionCostUSD += b.Total
	return nil
}

// finalizeTurn emits the turn record and closes the turn in state. The caller
// persists state.
func (t *Tracker) finalizeTurn(st *domain.SessionState, now time.Time, interrupted bool) error {
	turn := &domain.Turn{
		SessionID:   st.SessionID,
		Turn:        st.Turn,
		StartedAt:   st.TurnStartedAt,
		EndedAt:     now,
		ToolCount:   st.TurnToolCount,
		CostUSD:     st.TurnCostUSD,
		Interrupted: interrupted,
	}
	if err := t.Ledger.AppendTurn(turn); err != nil {
		return err
	}
	st.TurnOpen = false
	return nil
}
