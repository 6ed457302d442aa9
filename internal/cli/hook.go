package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cctally/cctally/internal/domain"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle a host runtime hook event",
	Long: `Reads one hook event JSON object from stdin and dispatches it.

This is a unified entry point for all lifecycle events. Configure your hooks
to use "cctally hook" for every event type:

  {
    "hooks": {
      "UserPromptSubmit": [{"type": "command", "command": "cctally hook"}],
      "PreToolUse":       [{"type": "command", "command": "cctally hook"}],
      "PostToolUse":      [{"type": "command", "command": "cctally hook"}],
      "PreCompact":       [{"type": "command", "command": "cctally hook"}],
      "Stop":             [{"type": "command", "command": "cctally hook"}]
    }
  }`,
	RunE: runHook,
}

func runHook(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	// Bound the read before parsing; oversized input is rejected outright.
	input, err := io.ReadAll(io.LimitReader(os.Stdin, cfg.MaxInputBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	if int64(len(input)) > cfg.MaxInputBytes {
		return fmt.Errorf("hook input exceeds %d byte limit", cfg.MaxInputBytes)
	}

	event, err := domain.ParseHookEvent(input)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			// Incomplete but recognized input: drop the event without side
			// effects and exit cleanly.
			fmt.Fprintf(os.Stderr, "warning: dropping event: %v\n", verr)
			return nil
		}
		return fmt.Errorf("failed to parse hook event: %w", err)
	}

	tr, err := buildTracker(cfg)
	if err != nil {
		return err
	}

	switch e := event.(type) {
	case *domain.UserPromptSubmitInput:
		return tr.HandlePrompt(e)
	case *domain.PreToolUseInput:
		return tr.HandleToolStart(e)
	case *domain.PostToolUseInput:
		return tr.HandleToolEnd(e)
	case *domain.PreCompactInput:
		return tr.HandleCompact(e)
	case *domain.StopInput:
		if err := tr.HandleStop(e); err != nil {
			return err
		}
		// The write error matters: a closed pipe must surface so Execute can
		// treat it as a clean shutdown.
		if _, err := fmt.Fprintf(os.Stdout, "session %s recorded\n", e.SessionID); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unhandled hook event type: %T", event)
	}
}
