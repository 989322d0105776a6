package notify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayhound-dev/grayhound/pkg/status"
)

// writeScript creates an executable shell script in a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "on-cleanup.sh")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700) //nolint:gosec // test script must be executable
	require.NoError(t, err)
	return path
}

func TestCustomChannel_Send(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}

	t.Run("script gets the run on stdin and in env", func(t *testing.T) {
		dir := t.TempDir()
		jsonFile, envFile := filepath.Join(dir, "run.json"), filepath.Join(dir, "env")
		ch := newCustomChannel(writeScript(t, "cat > "+jsonFile+"\nenv | grep ^GRAYHOUND_ | sort > "+envFile))
		require.NoError(t, ch.send(context.Background(), finishedRun))

		data, err := os.ReadFile(jsonFile) //nolint:gosec // path from t.TempDir()
		require.NoError(t, err)
		var got Result
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, finishedRun, got)

		env, err := os.ReadFile(envFile) //nolint:gosec // path from t.TempDir()
		require.NoError(t, err)
		assert.Equal(t, []string{"GRAYHOUND_REMOVED=2", "GRAYHOUND_RUN_ID=run-7", "GRAYHOUND_STATUS=success", "GRAYHOUND_TOTAL=4"},
			strings.Fields(string(env)))
	})

	t.Run("failed run carries state and error", func(t *testing.T) {
		jsonFile := filepath.Join(t.TempDir(), "run.json")
		ch := newCustomChannel(writeScript(t, "cat > "+jsonFile))
		require.NoError(t, ch.send(context.Background(), Result{Status: StatusFailure, FailedIn: status.StateScanning,
			Error: "websocket: close 1006 (abnormal closure)"}))

		data, err := os.ReadFile(jsonFile) //nolint:gosec // path from t.TempDir()
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"failure","failed_in":"scanning","error":"websocket: close 1006 (abnormal closure)"}`, string(data))
	})

	t.Run("script output is part of the error", func(t *testing.T) {
		ch := newCustomChannel(writeScript(t, "echo cannot reach pager\necho exit >&2\nexit 1"))
		err := ch.send(context.Background(), finishedRun)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "output: cannot reach pager\nexit")
	})

	t.Run("silent failure", func(t *testing.T) {
		ch := newCustomChannel(writeScript(t, "exit 3"))
		err := ch.send(context.Background(), finishedRun)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "output:")
	})

	t.Run("timeout kills script", func(t *testing.T) {
		ch := newCustomChannel(writeScript(t, "sleep 10"))
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		require.Error(t, ch.send(ctx, finishedRun))
	})

	t.Run("missing script", func(t *testing.T) {
		err := newCustomChannel("/nonexistent/on-cleanup.sh").send(context.Background(), finishedRun)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "script /nonexistent/on-cleanup.sh")
	})
}
