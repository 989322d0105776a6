// Package input provides terminal input collection for the interactive cleanup shell.
package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrCanceled is returned when the user aborts a selection.
var ErrCanceled = errors.New("selection canceled")

// Collector provides interactive input collection.
type Collector interface {
	// AskQuestion presents a question with options and returns the selected answer.
	AskQuestion(ctx context.Context, question string, options []string) (string, error)
	// Confirm asks a yes/no question, anything but an explicit yes is a no.
	Confirm(ctx context.Context, question string) (bool, error)
	// ReadLine prints a prompt and returns the trimmed line entered.
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// TerminalCollector implements Collector using fzf (if available on a terminal) or numbered selection fallback.
type TerminalCollector struct {
	stdin  io.Reader // for testing, nil uses os.Stdin
	stdout io.Writer // for testing, nil uses os.Stdout
	useFzf bool

	reader *bufio.Reader // shared so buffered input survives between prompts
}

// NewTerminalCollector creates a new TerminalCollector with default stdin/stdout.
// fzf is used for option selection only when stdin is a terminal and fzf is installed.
func NewTerminalCollector() *TerminalCollector {
	return &TerminalCollector{useFzf: hasFzf() && term.IsTerminal(int(os.Stdin.Fd()))}
}

// NewCollector creates a TerminalCollector reading from r and writing to w, without fzf.
func NewCollector(r io.Reader, w io.Writer) *TerminalCollector {
	return &TerminalCollector{stdin: r, stdout: w}
}

// AskQuestion presents options using fzf if enabled, otherwise falls back to numbered selection.
func (c *TerminalCollector) AskQuestion(ctx context.Context, question string, options []string) (string, error) {
	if len(options) == 0 {
		return "", errors.New("no options provided")
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("ask question: %w", err)
	}

	if c.useFzf {
		return c.selectWithFzf(ctx, question, options)
	}
	return c.selectWithNumbers(question, options)
}

// Confirm asks a yes/no question. y and yes (any case) confirm, everything else declines.
func (c *TerminalCollector) Confirm(ctx context.Context, question string) (bool, error) {
	line, err := c.ReadLine(ctx, question+" [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ReadLine prints prompt and reads one line. EOF with no data is returned as io.EOF.
func (c *TerminalCollector) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("read line: %w", err)
	}
	_, _ = fmt.Fprint(c.out(), prompt)

	line, err := c.in().ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// hasFzf checks if fzf is available in PATH.
func hasFzf() bool {
	_, err := exec.LookPath("fzf")
	return err == nil
}

// selectWithFzf uses fzf for interactive selection.
func (c *TerminalCollector) selectWithFzf(ctx context.Context, question string, options []string) (string, error) {
	cmd := exec.CommandContext(ctx, "fzf", "--prompt", question+": ", "--height", "10", "--layout=reverse") //nolint:gosec // fzf is a trusted external tool
	cmd.Stdin = strings.NewReader(strings.Join(options, "\n"))
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	if err != nil {
		// fzf returns exit code 130 when user presses Escape
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 130 {
			return "", ErrCanceled
		}
		return "", fmt.Errorf("fzf selection failed: %w", err)
	}

	selected := strings.TrimSpace(string(output))
	if selected == "" {
		return "", errors.New("no selection made")
	}
	return selected, nil
}

// selectWithNumbers presents numbered options for selection via stdin.
func (c *TerminalCollector) selectWithNumbers(question string, options []string) (string, error) {
	stdout := c.out()

	_, _ = fmt.Fprintln(stdout)
	_, _ = fmt.Fprintln(stdout, question)
	for i, opt := range options {
		_, _ = fmt.Fprintf(stdout, "  %d) %s\n", i+1, opt)
	}
	_, _ = fmt.Fprintf(stdout, "Enter number (1-%d): ", len(options))

	line, err := c.in().ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("read input: %w", err)
	}

	line = strings.TrimSpace(line)
	num, err := strconv.Atoi(line)
	if err != nil {
		return "", fmt.Errorf("invalid number: %s", line)
	}
	if num < 1 || num > len(options) {
		return "", fmt.Errorf("selection out of range: %d (must be 1-%d)", num, len(options))
	}

	return options[num-1], nil
}

// ParseSelection parses a list of 1-based numbers and ranges ("1 3,5-7") into sorted,
// deduplicated 0-based indexes below n.
func ParseSelection(line string, n int) ([]int, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) == 0 {
		return nil, errors.New("empty selection")
	}

	seen := make(map[int]bool)
	var res []int
	for _, f := range fields {
		lo, hi, isRange := strings.Cut(f, "-")
		if !isRange {
			hi = lo
		}
		from, errFrom := strconv.Atoi(lo)
		to, errTo := strconv.Atoi(hi)
		if errFrom != nil || errTo != nil {
			return nil, fmt.Errorf("invalid number: %s", f)
		}
		if from > to {
			from, to = to, from
		}
		if from < 1 || to > n {
			return nil, fmt.Errorf("selection out of range: %s (must be 1-%d)", f, n)
		}
		for i := from; i <= to; i++ {
			if !seen[i-1] {
				seen[i-1] = true
				res = append(res, i-1)
			}
		}
	}
	slices.Sort(res)
	return res, nil
}

func (c *TerminalCollector) in() *bufio.Reader {
	if c.reader == nil {
		stdin := c.stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		c.reader = bufio.NewReader(stdin)
	}
	return c.reader
}

func (c *TerminalCollector) out() io.Writer {
	if c.stdout == nil {
		return os.Stdout
	}
	return c.stdout
}
