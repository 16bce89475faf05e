// Package sources is the content-retrieval boundary. Connector plumbing
// (Slack, Gmail, Notion clients) lives outside the core; the pipeline only
// needs "text for a source descriptor".
package sources

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/zulandar/inkwell/internal/config"
	"github.com/zulandar/inkwell/internal/models"
)

// Fetcher retrieves the current content for one source.
type Fetcher interface {
	Fetch(ctx context.Context, src models.SourceDescriptor) (string, error)
}

// CommandFetcher shells out to a per-platform fetch command, passing the
// resource locator as the final argument and reading content from stdout.
type CommandFetcher struct {
	Sources []config.SourceConfig
}

// Fetch runs the configured fetch command for the source's platform.
func (f *CommandFetcher) Fetch(ctx context.Context, src models.SourceDescriptor) (string, error) {
	var sc *config.SourceConfig
	for i := range f.Sources {
		if f.Sources[i].Platform == src.Platform {
			sc = &f.Sources[i]
			break
		}
	}
	if sc == nil {
		return "", fmt.Errorf("sources: no fetcher configured for platform %q", src.Platform)
	}

	timeout := sc.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmdStr := sc.FetchCommand + " " + shellQuote(src.Resource)
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	// Don't let a fetch command's lingering children hold the output pipes
	// open past the deadline.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("sources: fetch %s/%s: %w: %s", src.Platform, src.Resource, err, detail)
		}
		return "", fmt.Errorf("sources: fetch %s/%s: %w", src.Platform, src.Resource, err)
	}
	return stdout.String(), nil
}

// shellQuote single-quotes s for safe interpolation into an sh command line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// StaticFetcher serves fixed content keyed by "platform/resource". Used in
// tests and local dry runs.
type StaticFetcher struct {
	Content map[string]string
	Err     error
}

// Fetch returns the stored content for the descriptor.
func (f *StaticFetcher) Fetch(_ context.Context, src models.SourceDescriptor) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	key := src.Platform + "/" + src.Resource
	content, ok := f.Content[key]
	if !ok {
		return "", fmt.Errorf("sources: no content for %s", key)
	}
	return content, nil
}
