// Package ignore manages the local ignore list: program names excluded from scans.
// the list is stored as YAML and can be watched for external edits.
package ignore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// file is the on-disk layout.
type file struct {
	Programs []string `yaml:"programs"`
}

// List is a thread-safe ignore list backed by a YAML file.
type List struct {
	path string

	mu       sync.RWMutex
	names    []string
	onChange func(names []string)
}

// Load reads the ignore list from path. a missing file gives an empty list.
func Load(path string) (*List, error) {
	l := &List{path: path}
	names, err := readFile(path)
	if err != nil {
		return nil, err
	}
	l.names = names
	return l, nil
}

// readFile parses the YAML file, dropping blank and duplicate names.
func readFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ignore list %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ignore list %s: %w", path, err)
	}
	return normalize(f.Programs), nil
}

func normalize(names []string) []string {
	res := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" && !slices.Contains(res, n) {
			res = append(res, n)
		}
	}
	return res
}

// Path returns the backing file path.
func (l *List) Path() string {
	return l.path
}

// Names returns a copy of the ignored names, never nil.
func (l *List) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make([]string, len(l.names))
	copy(res, l.names)
	return res
}

// Contains reports whether name is ignored.
func (l *List) Contains(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.names, name)
}

// Add adds a name, returns false if it was already present or blank.
func (l *List) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.names, name) {
		return false
	}
	l.names = append(l.names, name)
	return true
}

// Remove removes a name, returns false if it was not present.
func (l *List) Remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := slices.Index(l.names, name)
	if idx < 0 {
		return false
	}
	l.names = slices.Delete(l.names, idx, idx+1)
	return true
}

// Set replaces the whole list.
func (l *List) Set(names []string) {
	l.mu.Lock()
	l.names = normalize(names)
	l.mu.Unlock()
}

// Save writes the list to its file atomically.
func (l *List) Save() error {
	data, err := yaml.Marshal(file{Programs: l.Names()})
	if err != nil {
		return fmt.Errorf("marshal ignore list: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create ignore list dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ignore-*.yml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write ignore list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close ignore list: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace ignore list: %w", err)
	}
	return nil
}

// OnChange registers a callback fired after the file is reloaded by Watch.
// only one callback is supported; subsequent calls replace the previous one.
func (l *List) OnChange(fn func(names []string)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Reload re-reads the file and fires the OnChange callback if the list changed.
func (l *List) Reload() error {
	names, err := readFile(l.path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	changed := !slices.Equal(l.names, names)
	l.names = names
	cb := l.onChange
	l.mu.Unlock()

	if changed && cb != nil {
		cb(slices.Clone(names))
	}
	return nil
}

// Watch reloads the list whenever its file is written, created or replaced, until ctx is canceled.
// the parent directory is watched so editors that replace the file are handled.
// onErr, if not nil, receives reload and watcher errors; watching continues after them.
func (l *List) Watch(ctx context.Context, onErr func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create ignore list dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	report := func(err error) {
		if onErr != nil && err != nil {
			onErr(err)
		}
	}
	target := filepath.Clean(l.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				report(l.Reload())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			report(fmt.Errorf("watch ignore list: %w", err))
		}
	}
}
