package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Drafter is the draft-generation boundary: text in, text out. The actual
// model call lives outside the core.
type Drafter interface {
	Draft(ctx context.Context, prompt string) (string, error)
}

// CommandDrafter shells out to a configured draft command, writing the prompt
// to stdin and reading the draft from stdout.
type CommandDrafter struct {
	Command string
}

// Draft runs the draft command once. The caller owns timeout and retries.
func (d *CommandDrafter) Draft(ctx context.Context, prompt string) (string, error) {
	if d.Command == "" {
		return "", fmt.Errorf("pipeline: draft command is not configured")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", d.Command)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("pipeline: draft command: %w: %s", err, detail)
		}
		return "", fmt.Errorf("pipeline: draft command: %w", err)
	}

	draft := strings.TrimSpace(stdout.String())
	if draft == "" {
		return "", fmt.Errorf("pipeline: draft command produced no output")
	}
	return draft, nil
}
