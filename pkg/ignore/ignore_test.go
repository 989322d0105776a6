package ignore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "ignore.yml"))
	require.NoError(t, err)
	assert.Empty(t, l.Names())
	assert.NotNil(t, l.Names())
}

func TestLoad_Normalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.yml")
	require.NoError(t, os.WriteFile(path, []byte("programs:\n  - Foo\n  - ' Bar '\n  - ''\n  - Foo\n"), 0o600))

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo", "Bar"}, l.Names())
	assert.True(t, l.Contains("Bar"))
	assert.False(t, l.Contains("Baz"))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.yml")
	require.NoError(t, os.WriteFile(path, []byte("programs: [unclosed\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse ignore list")
}

func TestList_AddRemoveSet(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "ignore.yml"))
	require.NoError(t, err)

	assert.True(t, l.Add("Foo"))
	assert.False(t, l.Add("Foo"), "duplicate")
	assert.False(t, l.Add("  "), "blank")
	assert.True(t, l.Add("Bar"))
	assert.Equal(t, []string{"Foo", "Bar"}, l.Names())

	assert.True(t, l.Remove("Foo"))
	assert.False(t, l.Remove("Foo"))
	assert.Equal(t, []string{"Bar"}, l.Names())

	l.Set([]string{"X", "X", " Y "})
	assert.Equal(t, []string{"X", "Y"}, l.Names())
}

func TestList_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "ignore.yml")
	l, err := Load(path)
	require.NoError(t, err)
	l.Add("Foo")
	l.Add("Bar")
	require.NoError(t, l.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "programs:")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo", "Bar"}, loaded.Names())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestList_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.yml")
	l, err := Load(path)
	require.NoError(t, err)

	var got [][]string
	l.OnChange(func(names []string) { got = append(got, names) })

	require.NoError(t, os.WriteFile(path, []byte("programs: [A]\n"), 0o600))
	require.NoError(t, l.Reload())
	require.NoError(t, l.Reload(), "unchanged content does not fire")

	require.Len(t, got, 1)
	assert.Equal(t, []string{"A"}, got[0])
}

func TestList_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.yml")
	l, err := Load(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var latest []string
	l.OnChange(func(names []string) {
		mu.Lock()
		latest = names
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx, nil) }()

	// the watcher registers asynchronously, keep rewriting until it observes the change
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("programs: [Foo, Bar]\n"), 0o600)
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 2
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{"Foo", "Bar"}, l.Names())

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestList_WatchReportsReloadErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.yml")
	l, err := Load(path)
	require.NoError(t, err)

	errs := make(chan error, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Watch(ctx, func(err error) { errs <- err }) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("programs: [broken\n"), 0o600)
		select {
		case err := <-errs:
			return err != nil
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
}
