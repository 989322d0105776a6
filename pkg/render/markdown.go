// Package render provides terminal rendering utilities: markdown reports and item tables.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/report"
)

// RenderMarkdown renders markdown content for terminal display.
// If noColor is true, returns the content unchanged.
// Otherwise, uses glamour to render with auto-detected style and word wrap.
func RenderMarkdown(content string, noColor bool) (string, error) {
	if noColor {
		return content, nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}

	result, err := renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	return result, nil
}

// ReportMarkdown combines the agent's report with a summary of the final outcome set.
// when final is empty the agent report is returned as is.
func ReportMarkdown(agentReport string, final []protocol.Outcome) string {
	if len(final) == 0 {
		return agentReport
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(agentReport, "\n"))
	if agentReport != "" {
		sb.WriteString("\n\n")
	}
	sb.WriteString("## Results\n\n")
	fmt.Fprintf(&sb, "%s\n\n", report.Summarize(final))
	sb.WriteString("| Program | Status | Details |\n|---|---|---|\n")
	for _, o := range final {
		fmt.Fprintf(&sb, "| %s | %s | %s |\n", escapeCell(o.DisplayName()), o.Status, escapeCell(o.Message))
	}
	return sb.String()
}

// RenderReport renders the final report for the terminal.
func RenderReport(agentReport string, final []protocol.Outcome, noColor bool) (string, error) {
	return RenderMarkdown(ReportMarkdown(agentReport, final), noColor)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
