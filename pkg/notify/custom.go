package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// customChannel hands the run result to a user script: json on stdin, the headline fields in
// GRAYHOUND_* environment variables.
type customChannel struct {
	script string
}

func newCustomChannel(script string) *customChannel {
	return &customChannel{script: script}
}

func (c *customChannel) send(ctx context.Context, r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}

	sum := r.Summary()
	cmd := exec.CommandContext(ctx, c.script) //nolint:gosec // script path comes from the user's config
	cmd.Stdin = bytes.NewReader(data)
	cmd.Env = append(os.Environ(),
		"GRAYHOUND_STATUS="+r.Status,
		"GRAYHOUND_RUN_ID="+r.RunID,
		fmt.Sprintf("GRAYHOUND_REMOVED=%d", sum.Removed),
		fmt.Sprintf("GRAYHOUND_TOTAL=%d", sum.Total),
	)
	var out bytes.Buffer
	cmd.Stdout, cmd.Stderr = &out, &out

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("script %s: %w, output: %s", c.script, err, msg)
		}
		return fmt.Errorf("script %s: %w", c.script, err)
	}
	return nil
}
