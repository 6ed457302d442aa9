package ledger

// Category names one durable log. Each category owns a single delimited-text
// file under the data directory.
type Category string

const (
	CategorySessions      Category = "sessions"
	CategoryTurns         Category = "turns"
	CategoryTools         Category = "tools"
	CategoryCosts         Category = "costs"
	CategoryPrompts       Category = "prompts"
	CategoryGitOperations Category = "git_operations"
	CategoryCompactions   Category = "compactions"
	CategoryCommits       Category = "commits"
)

// schemas defines the current header for every category. Columns are matched
// by name during migration, so renaming a column drops its old data while
// adding or removing columns is handled automatically.
var schemas = map[Category][]string{
	CategorySessions: {
		"session_id", "user_name", "user_email", "repo_url", "repo_name",
		"branch", "head_commit", "started_at", "ended_at", "turn_count",
		"total_cost_usd", "interrupted",
	},
	CategoryTurns: {
		"session_id", "turn", "started_at", "ended_at", "tool_count",
		"cost_usd", "interrupted",
	},
	CategoryTools: {
		"session_id", "turn", "tool_name", "started_at", "ended_at",
		"success", "duration_ms", "input_bytes", "output_bytes",
	},
	CategoryCosts: {
		"session_id", "turn", "message_id", "model", "input_tokens",
		"output_tokens", "cache_write_tokens", "cache_read_tokens",
		"input_cost_usd", "output_cost_usd", "cache_write_cost_usd",
		"cache_read_cost_usd", "total_cost_usd", "timestamp",
	},
	CategoryPrompts: {
		"session_id", "turn", "category", "subcategory", "prompt_length",
		"timestamp",
	},
	CategoryGitOperations: {
		"session_id", "turn", "operation", "branch", "timestamp",
	},
	CategoryCompactions: {
		"session_id", "turn", "timestamp", "tokens_before", "tokens_after",
		"reduction", "reduction_pct", "compact_type", "trigger",
	},
	CategoryCommits: {
		"session_id", "turn", "commit_hash", "branch", "author",
		"files_changed", "insertions", "deletions", "total_lines_changed",
		"timestamp",
	},
}

// AllCategories returns every ledger category in a stable order.
func AllCategories() []Category {
	return []Category{
		CategorySessions,
		CategoryTurns,
		CategoryTools,
		CategoryCosts,
		CategoryPrompts,
		CategoryGitOperations,
		CategoryCompactions,
		CategoryCommits,
	}
}

// Header returns the current schema for a category.
func Header(c Category) []string {
	return schemas[c]
}
