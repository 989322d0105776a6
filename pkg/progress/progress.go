// Package progress provides timestamped logging to file and stdout with color support.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/grayhound-dev/grayhound/pkg/config"
	"github.com/grayhound-dev/grayhound/pkg/status"
)

// Logger writes timestamped output to both file and stdout, colored by workflow state.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	stdout    io.Writer
	startTime time.Time
	state     status.State
	colors    colorSet
}

// Config holds logger configuration.
type Config struct {
	Dir      string             // directory for the progress file, empty means current directory
	RunID    string             // run id written to the header and used in the filename
	AgentURL string             // agent endpoint written to the header
	NoColor  bool               // disable color output (sets color.NoColor globally)
	Colors   config.ColorConfig // "r,g,b" colors, missing entries fall back to basic colors
}

// colorSet holds resolved colors for states and message kinds.
type colorSet struct {
	states    map[status.State]*color.Color
	warn      *color.Color
	err       *color.Color
	timestamp *color.Color
	info      *color.Color
}

// NewLogger creates a logger writing to both a progress file and stdout.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.NoColor {
		color.NoColor = true
	}

	progressPath := progressFilename(cfg.Dir, cfg.RunID)
	if dir := filepath.Dir(progressPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create progress dir: %w", err)
		}
	}

	f, err := os.Create(progressPath) //nolint:gosec // path derived from config and run id
	if err != nil {
		return nil, fmt.Errorf("create progress file: %w", err)
	}

	l := &Logger{
		file:      f,
		path:      f.Name(),
		stdout:    os.Stdout,
		startTime: time.Now(),
		state:     status.StateIdle,
		colors:    newColorSet(cfg.Colors),
	}

	agent := cfg.AgentURL
	if agent == "" {
		agent = "(unknown)"
	}
	l.writeFile("# Grayhound Progress Log\n")
	l.writeFile("Run: %s\n", cfg.RunID)
	l.writeFile("Agent: %s\n", agent)
	l.writeFile("Started: %s\n", l.startTime.Format("2006-01-02 15:04:05"))
	l.writeFile("%s\n\n", strings.Repeat("-", 60))

	return l, nil
}

// newColorSet builds colors from config, using basic terminal colors for unset entries.
func newColorSet(c config.ColorConfig) colorSet {
	return colorSet{
		states: map[status.State]*color.Color{
			status.StateIdle:       rgbColor(c.Info, color.FgWhite),
			status.StateScanning:   rgbColor(c.Scanning, color.FgCyan),
			status.StateReviewing:  rgbColor(c.Review, color.FgBlue),
			status.StatePhaseA:     rgbColor(c.Cleanup, color.FgGreen),
			status.StateEscalation: rgbColor(c.Escalation, color.FgMagenta),
			status.StateReporting:  rgbColor(c.Report, color.FgWhite),
			status.StateFailed:     rgbColor(c.Error, color.FgRed),
		},
		warn:      rgbColor(c.Warn, color.FgYellow),
		err:       rgbColor(c.Error, color.FgRed),
		timestamp: rgbColor(c.Timestamp, color.FgWhite),
		info:      rgbColor(c.Info, color.FgWhite),
	}
}

// rgbColor parses an "r,g,b" string, returning fallback for empty or malformed values.
func rgbColor(rgb string, fallback color.Attribute) *color.Color {
	parts := strings.Split(rgb, ",")
	if len(parts) != 3 {
		return color.New(fallback)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return color.New(fallback)
		}
		vals[i] = v
	}
	return color.RGB(vals[0], vals[1], vals[2])
}

// Path returns the progress file path.
func (l *Logger) Path() string {
	return l.path
}

// SetState sets the current workflow state for color coding and records the transition.
func (l *Logger) SetState(state status.State) {
	l.mu.Lock()
	changed := l.state != state
	l.state = state
	l.mu.Unlock()
	if changed {
		l.writeFile("[%s] --- %s ---\n", time.Now().Format(timestampFormat), state)
	}
}

// State returns the current workflow state.
func (l *Logger) State() status.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// timestampFormat is the format for timestamps: YY-MM-DD HH:MM:SS
const timestampFormat = "06-01-02 15:04:05"

// Print writes a timestamped message to both file and stdout.
func (l *Logger) Print(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	l.writeFile("[%s] %s\n", timestamp, msg)

	tsStr := l.colors.timestamp.Sprintf("[%s]", timestamp)
	l.writeStdout("%s %s\n", tsStr, l.stateColor().Sprint(msg))
}

// PrintRaw writes without timestamp (agent progress lines and free text).
func (l *Logger) PrintRaw(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.writeFile("%s", msg)
	l.writeStdout("%s", l.colors.info.Sprint(msg))
}

// getTerminalWidth returns terminal width, using COLUMNS env var or syscall.
// Defaults to 80 if detection fails. Returns content width (total - 20 for timestamp).
func getTerminalWidth() int {
	const minWidth = 40

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if w, err := strconv.Atoi(cols); err == nil && w > 0 {
			return max(w-20, minWidth)
		}
	}

	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return max(w-20, minWidth)
	}

	return 80 - 20
}

// wrapText wraps text to specified width, breaking on word boundaries.
func wrapText(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		wordLen := len(word)
		switch {
		case i == 0:
			result.WriteString(word)
			lineLen = wordLen
		case lineLen+1+wordLen <= width:
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wordLen
		default:
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wordLen
		}
	}
	return result.String()
}

// PrintAligned writes text with timestamp, handling multi-line content properly.
// timestamps the first line, indents continuation lines. used for agent feedback and reports.
func (l *Logger) PrintAligned(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}

	timestamp := time.Now().Format(timestampFormat)
	stateColor := l.stateColor()
	tsPrefix := l.colors.timestamp.Sprintf("[%s]", timestamp)
	indent := strings.Repeat(" ", 20) // aligns with "[YY-MM-DD HH:MM:SS] "

	width := getTerminalWidth()
	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		if len(line) <= width {
			lines = append(lines, line)
			continue
		}
		for wrapped := range strings.SplitSeq(wrapText(line, width), "\n") {
			lines = append(lines, wrapped)
		}
	}

	for i, line := range lines {
		switch {
		case line == "":
			l.writeFile("\n")
			l.writeStdout("\n")
		case i == 0:
			l.writeFile("[%s] %s\n", timestamp, line)
			l.writeStdout("%s %s\n", tsPrefix, stateColor.Sprint(line))
		default:
			l.writeFile("%s%s\n", indent, line)
			l.writeStdout("%s%s\n", indent, stateColor.Sprint(line))
		}
	}
}

// Error writes an error message in the error color.
func (l *Logger) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	l.writeFile("[%s] ERROR: %s\n", timestamp, msg)

	tsStr := l.colors.timestamp.Sprintf("[%s]", timestamp)
	l.writeStdout("%s %s\n", tsStr, l.colors.err.Sprintf("ERROR: %s", msg))
}

// Warn writes a warning message in the warn color.
func (l *Logger) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	l.writeFile("[%s] WARN: %s\n", timestamp, msg)

	tsStr := l.colors.timestamp.Sprintf("[%s]", timestamp)
	l.writeStdout("%s %s\n", tsStr, l.colors.warn.Sprintf("WARN: %s", msg))
}

// Elapsed returns formatted elapsed time since start.
func (l *Logger) Elapsed() string {
	return humanize.RelTime(l.startTime, time.Now(), "", "")
}

// Duration returns the time since start.
func (l *Logger) Duration() time.Duration {
	return time.Since(l.startTime)
}

// Close writes footer and closes the progress file.
func (l *Logger) Close() error {
	l.mu.Lock()
	closed := l.file == nil
	l.mu.Unlock()
	if closed {
		return nil
	}

	l.writeFile("\n%s\n", strings.Repeat("-", 60))
	l.writeFile("Completed: %s (%s)\n", time.Now().Format("2006-01-02 15:04:05"), l.Elapsed())

	l.mu.Lock()
	f := l.file
	l.file = nil
	l.mu.Unlock()
	if err := f.Close(); err != nil {
		return fmt.Errorf("close progress file: %w", err)
	}
	return nil
}

func (l *Logger) stateColor() *color.Color {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.colors.states[l.state]; ok {
		return c
	}
	return l.colors.info
}

func (l *Logger) writeFile(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		fmt.Fprintf(l.file, format, args...)
	}
}

func (l *Logger) writeStdout(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.stdout, format, args...)
}

// progressFilename returns the progress file path for a run.
func progressFilename(dir, runID string) string {
	name := "progress.txt"
	if runID != "" {
		short, _, _ := strings.Cut(runID, "-")
		name = fmt.Sprintf("progress-%s.txt", short)
	}
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
