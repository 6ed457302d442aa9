// Package parser reads host-runtime transcripts: JSON lines, some of which
// carry a token-usage record tagged with a model identifier and timestamp.
package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// UsageEntry is one token-usage record from a transcript.
type UsageEntry struct {
	MessageID        string
	Model            string
	Timestamp        time.Time
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

type transcriptEntry struct {
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp,omitempty"`
	Message   *message `json:"message,omitempty"`
	Usage     *usage   `json:"usage,omitempty"`
}

type message struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Usage *usage `json:"usage,omitempty"`
}

type usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
}

// LastUsage scans a transcript and returns its most recent token-usage entry,
// or nil if the transcript contains none. Malformed lines are skipped.
// Deliberately not a cumulative sum: the engine records exactly the last
// entry per stop event.
func LastUsage(path string) (*UsageEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// Increase buffer size for large lines
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var last *UsageEntry

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry transcriptEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			// Skip malformed lines
			continue
		}

		u := entry.Usage
		var messageID, model string
		if entry.Message != nil {
			messageID = entry.Message.ID
			model = entry.Message.Model
			if entry.Message.Usage != nil {
				u = entry.Message.Usage
			}
		}
		if u == nil {
			continue
		}

		e := &UsageEntry{
			MessageID:        messageID,
			Model:            model,
			InputTokens:      u.InputTokens,
			OutputTokens:     u.OutputTokens,
			CacheWriteTokens: u.CacheCreationInputTokens,
			CacheReadTokens:  u.CacheReadInputTokens,
		}
		if entry.Timestamp != "" {
			if t, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err == nil {
				e.Timestamp = t
			}
		}
		last = e
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading transcript: %w", err)
	}

	return last, nil
}
