package domain

import (
	"encoding/json"
	"fmt"
)

// ValidationError marks input that is structurally valid JSON but fails the
// event contract. The dispatcher logs it and drops the event without side
// effects instead of failing the process.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// HookEventBase contains fields common to all hook events from the host runtime.
type HookEventBase struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`
}

// UserPromptSubmitInput is sent when the user submits a prompt, opening a turn.
type UserPromptSubmitInput struct {
	HookEventBase
	Prompt string `json:"prompt"`
}

// PreToolUseInput is sent before a tool runs.
type PreToolUseInput struct {
	HookEventBase
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input"`
}

// PostToolUseInput is sent after a tool finishes.
type PostToolUseInput struct {
	HookEventBase
	ToolName     string          `json:"tool_name"`
	ToolInput    json.RawMessage `json:"tool_input"`
	ToolResponse json.RawMessage `json:"tool_response"`
	Success      *bool           `json:"success"`
}

// PreCompactInput is sent when the host runtime compacts conversational context.
type PreCompactInput struct {
	HookEventBase
	Trigger      string `json:"trigger"`
	CompactType  string `json:"compact_type"`
	TokensBefore int64  `json:"tokens_before"`
	TokensAfter  int64  `json:"tokens_after"`
}

// StopInput is sent when the session stops. Some host integrations fire it
// after every turn, not only at true session end.
type StopInput struct {
	HookEventBase
	StopHookActive bool `json:"stop_hook_active"`
}

// ParseHookEvent parses raw JSON into the appropriate typed event struct.
// A missing or unknown hook_event_name, or a tool event without a tool name,
// yields a *ValidationError.
func ParseHookEvent(data []byte) (any, error) {
	var base HookEventBase
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse hook event: %w", err)
	}

	if base.HookEventName == "" {
		return nil, &ValidationError{Reason: "missing hook_event_name"}
	}
	if base.SessionID == "" {
		return nil, &ValidationError{Reason: "missing session_id"}
	}

	switch base.HookEventName {
	case "UserPromptSubmit":
		var event UserPromptSubmitInput
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to parse UserPromptSubmit event: %w", err)
		}
		return &event, nil

	case "PreToolUse":
		var event PreToolUseInput
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to parse PreToolUse event: %w", err)
		}
		if event.ToolName == "" {
			return nil, &ValidationError{Reason: "PreToolUse event missing tool_name"}
		}
		return &event, nil

	case "PostToolUse":
		var event PostToolUseInput
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to parse PostToolUse event: %w", err)
		}
		if event.ToolName == "" {
			return nil, &ValidationError{Reason: "PostToolUse event missing tool_name"}
		}
		return &event, nil

	case "PreCompact":
		var event PreCompactInput
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to parse PreCompact event: %w", err)
		}
		return &event, nil

	case "Stop":
		var event StopInput
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to parse Stop event: %w", err)
		}
		return &event, nil

	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown hook event: %s", base.HookEventName)}
	}
}
