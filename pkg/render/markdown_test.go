package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/status"
)

func TestRenderMarkdown(t *testing.T) {
	t.Run("with color enabled renders markdown", func(t *testing.T) {
		content := "# Heading\n\nSome **bold** text."
		result, err := RenderMarkdown(content, false)
		require.NoError(t, err)
		assert.NotEqual(t, content, result)
		assert.Contains(t, result, "Heading")
		assert.Contains(t, result, "bold")
	})

	t.Run("with noColor returns plain content", func(t *testing.T) {
		content := "# Heading\n\nSome **bold** text."
		result, err := RenderMarkdown(content, true)
		require.NoError(t, err)
		assert.Equal(t, content, result)
	})

	t.Run("handles empty content", func(t *testing.T) {
		result, err := RenderMarkdown("", false)
		require.NoError(t, err)
		assert.Empty(t, strings.TrimSpace(result))
	})

	t.Run("handles lists", func(t *testing.T) {
		result, err := RenderMarkdown("- item 1\n- item 2", false)
		require.NoError(t, err)
		assert.Contains(t, result, "item 1")
		assert.Contains(t, result, "item 2")
	})
}

func TestReportMarkdown(t *testing.T) {
	final := []protocol.Outcome{
		{Name: "a", MaskedName: "A*", Status: status.OutcomeSuccess, Message: "removed"},
		{Name: "b", Status: status.OutcomeManualRequired, Message: "user chose not to remove"},
		{Name: "c", Status: status.OutcomeFailure, Message: "access | denied"},
	}

	md := ReportMarkdown("# Cleanup report\n\nAll good.\n", final)
	assert.True(t, strings.HasPrefix(md, "# Cleanup report\n\nAll good.\n\n## Results"))
	assert.Contains(t, md, "3 items: 1 removed, 1 need manual removal, 1 failed")
	assert.Contains(t, md, "| A* | success | removed |")
	assert.Contains(t, md, `access \| denied`)
}

func TestReportMarkdown_NoOutcomes(t *testing.T) {
	assert.Equal(t, "# Scan complete", ReportMarkdown("# Scan complete", nil))
}

func TestReportMarkdown_NoAgentText(t *testing.T) {
	md := ReportMarkdown("", []protocol.Outcome{{Name: "a", Status: status.OutcomeSuccess}})
	assert.True(t, strings.HasPrefix(md, "## Results"))
}

func TestRenderReport_NoColor(t *testing.T) {
	out, err := RenderReport("report", []protocol.Outcome{{Name: "a", Status: status.OutcomeSuccess}}, true)
	require.NoError(t, err)
	assert.Contains(t, out, "| a | success |  |")
}
