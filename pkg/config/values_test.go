package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesLoader_Load_EmbeddedOnly(t *testing.T) {
	values, err := newValuesLoader(DefaultsFS()).Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8765", values.AgentURL)
	assert.Equal(t, "en", values.Language)
	assert.Equal(t, 4, values.MinRiskScore)
	assert.True(t, values.MinRiskScoreSet)
	assert.Equal(t, 10000, values.HandshakeTimeoutMs)
	assert.Equal(t, 10000, values.WriteTimeoutMs)
	assert.Equal(t, "ignore.yml", values.IgnoreFile)
	assert.Empty(t, values.ProgressDir)

	assert.Empty(t, values.Notify.Channels)
	assert.True(t, values.Notify.OnError)
	assert.True(t, values.Notify.OnComplete)
	assert.Equal(t, 10000, values.Notify.TimeoutMs)
	assert.Empty(t, values.Notify.SMTPHost, "commented keys stay unset")
}

func TestValuesLoader_Load_GlobalOverridesEmbedded(t *testing.T) {
	tmpDir := t.TempDir()
	globalConfig := filepath.Join(tmpDir, "config")
	content := `
agent_url = ws://10.0.0.5:9000
language = ko
min_risk_score = 7
`
	require.NoError(t, os.WriteFile(globalConfig, []byte(content), 0o600))

	values, err := newValuesLoader(DefaultsFS()).Load("", globalConfig)
	require.NoError(t, err)

	assert.Equal(t, "ws://10.0.0.5:9000", values.AgentURL)
	assert.Equal(t, "ko", values.Language)
	assert.Equal(t, 7, values.MinRiskScore)
	assert.Equal(t, 10000, values.HandshakeTimeoutMs, "not overridden, comes from embedded")
}

func TestValuesLoader_Load_LocalZeroOverridesGlobal(t *testing.T) {
	tmpDir := t.TempDir()
	globalConfig := filepath.Join(tmpDir, "global")
	localConfig := filepath.Join(tmpDir, "local")
	require.NoError(t, os.WriteFile(globalConfig, []byte("min_risk_score = 8\nnotify_on_error = true\n"), 0o600))
	require.NoError(t, os.WriteFile(localConfig, []byte("min_risk_score = 0\nnotify_on_error = false\n"), 0o600))

	values, err := newValuesLoader(DefaultsFS()).Load(localConfig, globalConfig)
	require.NoError(t, err)

	assert.Equal(t, 0, values.MinRiskScore, "explicit zero in local wins")
	assert.False(t, values.Notify.OnError, "explicit false in local wins")
}

func TestValuesLoader_Load_CommentOnlyFile(t *testing.T) {
	tmpDir := t.TempDir()
	globalConfig := filepath.Join(tmpDir, "config")
	require.NoError(t, os.WriteFile(globalConfig, []byte("# agent_url = ws://other\n; language = ja\n\n"), 0o600))

	values, err := newValuesLoader(DefaultsFS()).Load("", globalConfig)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8765", values.AgentURL)
	assert.Equal(t, "en", values.Language)
}

func TestValuesLoader_Load_Notify(t *testing.T) {
	tmpDir := t.TempDir()
	globalConfig := filepath.Join(tmpDir, "config")
	content := `
notify_channels = telegram, webhook ,
notify_telegram_token = tok
notify_telegram_chat = 12345
notify_webhook_urls = https://a.example.com/hook,https://b.example.com/hook
notify_smtp_host = smtp.example.com
notify_smtp_port = 465
notify_smtp_starttls = false
notify_email_to = a@example.com, b@example.com
notify_custom_script = /usr/local/bin/hook.sh
notify_timeout_ms = 2500
`
	require.NoError(t, os.WriteFile(globalConfig, []byte(content), 0o600))

	values, err := newValuesLoader(DefaultsFS()).Load("", globalConfig)
	require.NoError(t, err)

	n := values.Notify
	assert.Equal(t, []string{"telegram", "webhook"}, n.Channels)
	assert.Equal(t, "tok", n.TelegramToken)
	assert.Equal(t, "12345", n.TelegramChat)
	assert.Equal(t, []string{"https://a.example.com/hook", "https://b.example.com/hook"}, n.WebhookURLs)
	assert.Equal(t, "smtp.example.com", n.SMTPHost)
	assert.Equal(t, 465, n.SMTPPort)
	assert.False(t, n.SMTPStartTLS)
	assert.True(t, values.NotifyTLSSet)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, n.EmailTo)
	assert.Equal(t, "/usr/local/bin/hook.sh", n.CustomScript)
	assert.Equal(t, 2500, n.TimeoutMs)
	assert.True(t, n.OnComplete, "embedded default preserved")
}

func TestValuesLoader_Load_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "risk not a number", content: "min_risk_score = high", wantErr: "invalid min_risk_score"},
		{name: "risk above range", content: "min_risk_score = 11", wantErr: "must be between 0 and 10"},
		{name: "risk below range", content: "min_risk_score = -1", wantErr: "must be between 0 and 10"},
		{name: "negative timeout", content: "write_timeout_ms = -5", wantErr: "must be non-negative"},
		{name: "bad bool", content: "notify_on_error = maybe", wantErr: "invalid notify_on_error"},
		{name: "bad port", content: "notify_smtp_port = 70000", wantErr: "invalid notify_smtp_port"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config")
			require.NoError(t, os.WriteFile(path, []byte(tc.content+"\n"), 0o600))

			_, err := newValuesLoader(DefaultsFS()).Load("", path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValuesLoader_Load_MissingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	values, err := newValuesLoader(DefaultsFS()).Load(filepath.Join(tmpDir, "nope"), filepath.Join(tmpDir, "nope2"))
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8765", values.AgentURL)
}

func TestStripComments(t *testing.T) {
	assert.Empty(t, stripComments("# a\n; b\n\n   \n"))
	assert.Equal(t, "key = #fff\n", stripComments("# header\nkey = #fff\n"))
}
