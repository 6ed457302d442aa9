package domain

import "time"

// Session is the terminal record appended for a session on Stop. Multiple
// terminal records per session ID are tolerated; readers take the latest.
type Session struct {
	ID           string
	UserName     string
	UserEmail    string
	RepoURL      string
	RepoName     string
	Branch       string
	HeadCommit   string
	StartedAt    time.Time
	EndedAt      time.Time
	TurnCount    int
	TotalCostUSD float64
	Interrupted  bool
}

// Turn is one prompt-to-response cycle, finalized when the next turn starts
// or the session stops.
type Turn struct {
	SessionID   string
	Turn        int
	StartedAt   time.Time
	EndedAt     time.Time
	ToolCount   int
	CostUSD     float64
	Interrupted bool
}

// ToolInvocation covers both phases of one tool call as a single row.
type ToolInvocation struct {
	SessionID   string
	Turn        int
	ToolName    string
	StartedAt   time.Time
	EndedAt     time.Time
	Success     bool
	DurationMs  int64
	InputBytes  int
	OutputBytes int
}

// CostRecord is derived from the last token-usage entry of a transcript.
type CostRecord struct {
	SessionID         string
	Turn              int
	MessageID         string
	Model             string
	InputTokens       int64
	OutputTokens      int64
	CacheWriteTokens  int64
	CacheReadTokens   int64
	InputCostUSD      float64
	OutputCostUSD     float64
	CacheWriteCostUSD float64
	CacheReadCostUSD  float64
	TotalCostUSD      float64
	Timestamp         time.Time
}

// PromptClassification stores the taxonomy result and prompt length,
// never the prompt text itself.
type PromptClassification struct {
	SessionID    string
	Turn         int
	Category     string
	Subcategory  string
	PromptLength int
	Timestamp    time.Time
}

// GitOperation is a non-commit git command observed in a Bash tool call.
type GitOperation struct {
	SessionID string
	Turn      int
	Operation string
	Branch    string
	Timestamp time.Time
}

// Commit captures repository state after a git commit command.
type Commit struct {
	SessionID         string
	Turn              int
	Hash              string
	Branch            string
	Author            string
	FilesChanged      int
	Insertions        int
	Deletions         int
	TotalLinesChanged int
	Timestamp         time.Time
}

// Compaction records a host-triggered context reduction.
type Compaction struct {
	SessionID    string
	Turn         int
	Timestamp    time.Time
	TokensBefore int64
	TokensAfter  int64
	Reduction    int64
	ReductionPct float64
	CompactType  string
	Trigger      string
}
