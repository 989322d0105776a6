package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/grayhound-dev/grayhound/pkg/notify"
)

// Values holds scalar configuration values.
// Fields ending in *Set (e.g., MinRiskScoreSet) track whether that field was explicitly
// set in config. This allows distinguishing explicit false/0 from "not set", enabling
// proper merge behavior where local config can override global config with zero values.
type Values struct {
	AgentURL              string
	Language              string
	MinRiskScore          int
	MinRiskScoreSet       bool // tracks if min_risk_score was explicitly set
	HandshakeTimeoutMs    int
	HandshakeTimeoutMsSet bool // tracks if handshake_timeout_ms was explicitly set
	WriteTimeoutMs        int
	WriteTimeoutMsSet     bool // tracks if write_timeout_ms was explicitly set
	IgnoreFile            string
	ProgressDir           string
	Colors                ColorConfig

	Notify          notify.Params
	NotifyOnErrSet  bool // tracks if notify_on_error was explicitly set
	NotifyOnDoneSet bool // tracks if notify_on_complete was explicitly set
	NotifyTLSSet    bool // tracks if notify_smtp_starttls was explicitly set
}

// valuesLoader loads Values with embedded filesystem fallback.
type valuesLoader struct {
	embedFS embed.FS
}

// newValuesLoader creates a new valuesLoader with the given embedded filesystem.
func newValuesLoader(embedFS embed.FS) *valuesLoader {
	return &valuesLoader{embedFS: embedFS}
}

// Load loads values from config files with fallback chain: local → global → embedded.
// localConfigPath and globalConfigPath are full paths to config files (not directories).
func (vl *valuesLoader) Load(localConfigPath, globalConfigPath string) (Values, error) {
	embedded, err := vl.parseValuesFromEmbedded()
	if err != nil {
		return Values{}, fmt.Errorf("parse embedded defaults: %w", err)
	}

	global, err := vl.parseValuesFromFile(globalConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse global config: %w", err)
	}

	local, err := vl.parseValuesFromFile(localConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse local config: %w", err)
	}

	// merge: embedded → global → local (local wins)
	result := embedded
	result.mergeFrom(&global)
	result.mergeFrom(&local)

	return result, nil
}

// parseValuesFromFile reads a config file and parses it into Values.
// returns empty Values (not error) if file doesn't exist or contains only comments/whitespace.
func (vl *valuesLoader) parseValuesFromFile(path string) (Values, error) {
	if path == "" {
		return Values{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return Values{}, nil
		}
		return Values{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.TrimSpace(stripComments(string(data))) == "" {
		return Values{}, nil
	}

	return vl.parseValuesFromBytes(data)
}

// parseValuesFromEmbedded parses values from the embedded defaults/config file.
func (vl *valuesLoader) parseValuesFromEmbedded() (Values, error) {
	data, err := vl.embedFS.ReadFile("defaults/config")
	if err != nil {
		return Values{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	return vl.parseValuesFromBytes(data)
}

// parseValuesFromBytes parses configuration from a byte slice into Values.
//
//nolint:gocyclo // flat list of keys, splitting would hurt readability
func (vl *valuesLoader) parseValuesFromBytes(data []byte) (Values, error) {
	// ignoreInlineComment: true prevents # from being treated as inline comment marker (hex colors)
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return Values{}, fmt.Errorf("parse config: %w", err)
	}

	var values Values
	section := cfg.Section("")

	// agent connection
	if key, err := section.GetKey("agent_url"); err == nil {
		values.AgentURL = strings.TrimSpace(key.String())
	}
	if val, ok, err := intKey(section, "handshake_timeout_ms", 0, -1); err != nil {
		return Values{}, err
	} else if ok {
		values.HandshakeTimeoutMs, values.HandshakeTimeoutMsSet = val, true
	}
	if val, ok, err := intKey(section, "write_timeout_ms", 0, -1); err != nil {
		return Values{}, err
	} else if ok {
		values.WriteTimeoutMs, values.WriteTimeoutMsSet = val, true
	}

	// workflow
	if key, err := section.GetKey("language"); err == nil {
		values.Language = strings.TrimSpace(key.String())
	}
	if val, ok, err := intKey(section, "min_risk_score", 0, 10); err != nil {
		return Values{}, err
	} else if ok {
		values.MinRiskScore, values.MinRiskScoreSet = val, true
	}

	// paths
	if key, err := section.GetKey("ignore_file"); err == nil {
		values.IgnoreFile = strings.TrimSpace(key.String())
	}
	if key, err := section.GetKey("progress_dir"); err == nil {
		values.ProgressDir = strings.TrimSpace(key.String())
	}

	if values.Colors, err = parseColors(section); err != nil {
		return Values{}, err
	}
	if err := parseNotify(section, &values); err != nil {
		return Values{}, err
	}

	return values, nil
}

// parseNotify fills notification settings from notify_* keys.
func parseNotify(section *ini.Section, values *Values) error {
	n := &values.Notify
	n.Channels = listKey(section, "notify_channels")
	n.WebhookURLs = listKey(section, "notify_webhook_urls")
	n.EmailTo = listKey(section, "notify_email_to")

	strKeys := []struct {
		key   string
		field *string
	}{
		{"notify_telegram_token", &n.TelegramToken},
		{"notify_telegram_chat", &n.TelegramChat},
		{"notify_slack_token", &n.SlackToken},
		{"notify_slack_channel", &n.SlackChannel},
		{"notify_smtp_host", &n.SMTPHost},
		{"notify_smtp_username", &n.SMTPUsername},
		{"notify_smtp_password", &n.SMTPPassword},
		{"notify_email_from", &n.EmailFrom},
		{"notify_custom_script", &n.CustomScript},
	}
	for _, sk := range strKeys {
		if key, err := section.GetKey(sk.key); err == nil {
			*sk.field = strings.TrimSpace(key.String())
		}
	}

	if val, ok, err := intKey(section, "notify_timeout_ms", 0, -1); err != nil {
		return err
	} else if ok {
		n.TimeoutMs = val
	}
	if val, ok, err := intKey(section, "notify_smtp_port", 0, 65535); err != nil {
		return err
	} else if ok {
		n.SMTPPort = val
	}

	boolKeys := []struct {
		key   string
		field *bool
		set   *bool
	}{
		{"notify_on_error", &n.OnError, &values.NotifyOnErrSet},
		{"notify_on_complete", &n.OnComplete, &values.NotifyOnDoneSet},
		{"notify_smtp_starttls", &n.SMTPStartTLS, &values.NotifyTLSSet},
	}
	for _, bk := range boolKeys {
		key, err := section.GetKey(bk.key)
		if err != nil {
			continue
		}
		val, boolErr := key.Bool()
		if boolErr != nil {
			return fmt.Errorf("invalid %s: %w", bk.key, boolErr)
		}
		*bk.field, *bk.set = val, true
	}
	return nil
}

// intKey reads an integer key bounded by minVal and maxVal, maxVal < 0 means unbounded.
// empty values are treated as not set.
func intKey(section *ini.Section, name string, minVal, maxVal int) (val int, ok bool, err error) {
	key, keyErr := section.GetKey(name)
	if keyErr != nil || strings.TrimSpace(key.String()) == "" {
		return 0, false, nil
	}
	val, err = key.Int()
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", name, err)
	}
	if val < minVal || (maxVal >= 0 && val > maxVal) {
		if maxVal < 0 {
			return 0, false, fmt.Errorf("invalid %s: must be non-negative, got %d", name, val)
		}
		return 0, false, fmt.Errorf("invalid %s: must be between %d and %d, got %d", name, minVal, maxVal, val)
	}
	return val, true, nil
}

// listKey reads a comma-separated key, skipping empty elements.
func listKey(section *ini.Section, name string) []string {
	key, err := section.GetKey(name)
	if err != nil {
		return nil
	}
	var res []string
	for p := range strings.SplitSeq(key.String(), ",") {
		if t := strings.TrimSpace(p); t != "" {
			res = append(res, t)
		}
	}
	return res
}

// stripComments removes full-line comments (# or ;) and blank lines.
func stripComments(content string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// mergeFrom merges non-empty values from src into dst.
func (dst *Values) mergeFrom(src *Values) {
	if src.AgentURL != "" {
		dst.AgentURL = src.AgentURL
	}
	if src.Language != "" {
		dst.Language = src.Language
	}
	if src.MinRiskScoreSet {
		dst.MinRiskScore, dst.MinRiskScoreSet = src.MinRiskScore, true
	}
	if src.HandshakeTimeoutMsSet {
		dst.HandshakeTimeoutMs, dst.HandshakeTimeoutMsSet = src.HandshakeTimeoutMs, true
	}
	if src.WriteTimeoutMsSet {
		dst.WriteTimeoutMs, dst.WriteTimeoutMsSet = src.WriteTimeoutMs, true
	}
	if src.IgnoreFile != "" {
		dst.IgnoreFile = src.IgnoreFile
	}
	if src.ProgressDir != "" {
		dst.ProgressDir = src.ProgressDir
	}
	dst.Colors.mergeFrom(&src.Colors)
	dst.mergeNotify(src)
}

func (dst *Values) mergeNotify(src *Values) {
	d, s := &dst.Notify, &src.Notify
	if len(s.Channels) > 0 {
		d.Channels = s.Channels
	}
	if len(s.WebhookURLs) > 0 {
		d.WebhookURLs = s.WebhookURLs
	}
	if len(s.EmailTo) > 0 {
		d.EmailTo = s.EmailTo
	}
	for _, p := range []struct{ dst, src *string }{
		{&d.TelegramToken, &s.TelegramToken},
		{&d.TelegramChat, &s.TelegramChat},
		{&d.SlackToken, &s.SlackToken},
		{&d.SlackChannel, &s.SlackChannel},
		{&d.SMTPHost, &s.SMTPHost},
		{&d.SMTPUsername, &s.SMTPUsername},
		{&d.SMTPPassword, &s.SMTPPassword},
		{&d.EmailFrom, &s.EmailFrom},
		{&d.CustomScript, &s.CustomScript},
	} {
		if *p.src != "" {
			*p.dst = *p.src
		}
	}
	if s.TimeoutMs > 0 {
		d.TimeoutMs = s.TimeoutMs
	}
	if s.SMTPPort > 0 {
		d.SMTPPort = s.SMTPPort
	}
	if src.NotifyOnErrSet {
		d.OnError, dst.NotifyOnErrSet = s.OnError, true
	}
	if src.NotifyOnDoneSet {
		d.OnComplete, dst.NotifyOnDoneSet = s.OnComplete, true
	}
	if src.NotifyTLSSet {
		d.SMTPStartTLS, dst.NotifyTLSSet = s.SMTPStartTLS, true
	}
}
