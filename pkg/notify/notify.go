// Package notify tells the user how a cleanup run ended: which programs were removed, which
// still need attention and, for a failed run, where it stopped and why.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"os"
	"strings"
	"time"

	ntfy "github.com/go-pkgz/notify"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/report"
	"github.com/grayhound-dev/grayhound/pkg/status"
)

// result kinds
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

const defaultTimeout = 10 * time.Second

// Params holds the notify_* settings from the config file.
type Params struct {
	Channels      []string
	OnError       bool
	OnComplete    bool
	TimeoutMs     int
	TelegramToken string
	TelegramChat  string
	SlackToken    string
	SlackChannel  string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPStartTLS  bool
	EmailFrom     string
	EmailTo       []string
	WebhookURLs   []string
	CustomScript  string
}

// Result describes one finished or failed cleanup run.
type Result struct {
	Status   string             `json:"status"` // StatusSuccess or StatusFailure
	RunID    string             `json:"run_id,omitempty"`
	Agent    string             `json:"agent,omitempty"`
	Duration string             `json:"duration,omitempty"`
	Outcomes []protocol.Outcome `json:"outcomes,omitempty"` // final outcome per program
	FailedIn status.State       `json:"failed_in,omitempty"`
	Error    string             `json:"error,omitempty"` // verbatim agent or transport error
}

// Summary counts the run's outcomes.
func (r Result) Summary() report.Summary {
	return report.Summarize(r.Outcomes)
}

// Service delivers run results to every configured channel. a nil *Service is valid and sends nothing.
type Service struct {
	channels   []channel
	custom     *customChannel
	onError    bool
	onComplete bool
	timeout    time.Duration
	hostname   string
	log        logger
}

type logger interface {
	Print(format string, args ...any)
}

// channel is one go-pkgz/notify destination.
type channel struct {
	notifier ntfy.Notifier
	dest     string
	escape   bool // destination renders html
	subject  bool // destination takes a per-message subject (mailto)
}

// newTelegram is swapped in tests, the real constructor calls the telegram api.
var newTelegram = func(token string) (ntfy.Notifier, error) {
	return ntfy.NewTelegram(ntfy.TelegramParams{Token: token})
}

// New builds the Service for the configured channels. it returns nil, nil when no channel is configured.
// a misconfigured channel is an error, an unreachable telegram api only disables that channel.
func New(p Params, log logger) (*Service, error) {
	if len(p.Channels) == 0 {
		return nil, nil //nolint:nilnil // nil service is a valid no-op
	}

	svc := &Service{onError: p.OnError, onComplete: p.OnComplete, timeout: defaultTimeout, log: log}
	if p.TimeoutMs > 0 {
		svc.timeout = time.Duration(p.TimeoutMs) * time.Millisecond
	}
	if svc.hostname, _ = os.Hostname(); svc.hostname == "" {
		svc.hostname = "unknown host"
	}

	for _, name := range p.Channels {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "custom" {
			if err := required(name, setting{"notify_custom_script", p.CustomScript}); err != nil {
				return nil, err
			}
			svc.custom = newCustomChannel(p.CustomScript)
			continue
		}
		build, ok := builders[name]
		if !ok {
			return nil, fmt.Errorf("unknown notification channel: %q", name)
		}
		chs, err := build(p, log)
		if err != nil {
			return nil, err
		}
		svc.channels = append(svc.channels, chs...)
	}

	if len(svc.channels) == 0 && svc.custom == nil {
		log.Print("[WARN] no notification channel could be initialized, run results will not be sent")
	}
	return svc, nil
}

// Send delivers r to every channel, subject to notify_on_complete and notify_on_error.
// delivery errors are logged, a notification never fails the run.
func (s *Service) Send(ctx context.Context, r Result) {
	if s == nil || !s.wants(r) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text := s.message(r)
	for _, ch := range s.channels {
		msg, dest := text, ch.dest
		if ch.escape {
			msg = html.EscapeString(text)
		}
		if ch.subject {
			dest += "&subject=" + url.QueryEscape(s.subject(r))
		}
		if err := ch.notifier.Send(ctx, dest, msg); err != nil {
			s.log.Print("[WARN] %s notification for run %s failed: %v", ch.notifier, r.RunID, err)
		}
	}
	if s.custom != nil {
		if err := s.custom.send(ctx, r); err != nil {
			s.log.Print("[WARN] custom notification for run %s failed: %v", r.RunID, err)
		}
	}
}

func (s *Service) wants(r Result) bool {
	switch r.Status {
	case StatusSuccess:
		return s.onComplete
	case StatusFailure:
		return s.onError
	default:
		return false
	}
}

// subject is the one-line headline used for email.
func (s *Service) subject(r Result) string {
	if r.Status == StatusFailure {
		return "grayhound: cleanup failed on " + s.hostname
	}
	sum := r.Summary()
	return fmt.Sprintf("grayhound: %d of %d programs removed on %s", sum.Removed, sum.Total, s.hostname)
}

// message renders r as plain text. programs are listed by display name so masked names stay masked.
func (s *Service) message(r Result) string {
	var b strings.Builder
	b.WriteString(s.subject(r))
	b.WriteString("\n")

	var meta []string
	if r.RunID != "" {
		meta = append(meta, "run "+r.RunID)
	}
	if r.Agent != "" {
		meta = append(meta, "agent "+r.Agent)
	}
	if r.Duration != "" {
		meta = append(meta, "took "+r.Duration)
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, ", "))
		b.WriteString("\n")
	}

	if r.Status == StatusFailure {
		if r.FailedIn != "" {
			fmt.Fprintf(&b, "\nstopped while %s\n", r.FailedIn)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, "error: %s\n", r.Error)
		}
		return b.String()
	}

	groups := []struct {
		title string
		match func(status.Outcome) bool
	}{
		{"removed", func(o status.Outcome) bool { return o == status.OutcomeSuccess }},
		{"needs manual removal", func(o status.Outcome) bool {
			return o == status.OutcomeManualRequired || o == status.OutcomeUIOpened
		}},
		{"not removed", func(o status.Outcome) bool {
			return o != status.OutcomeSuccess && o != status.OutcomeManualRequired && o != status.OutcomeUIOpened
		}},
	}
	for _, g := range groups {
		var lines []string
		for _, o := range r.Outcomes {
			if !g.match(o.Status) {
				continue
			}
			line := "  - " + o.DisplayName()
			if o.Message != "" {
				line += ": " + o.Message
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%d):\n%s\n", g.title, len(lines), strings.Join(lines, "\n"))
	}
	if len(r.Outcomes) == 0 {
		b.WriteString("\n" + report.MsgNoThreats + "\n")
	}
	return b.String()
}

// setting is a config key and its value, for required-field checks.
type setting struct{ key, val string }

func required(channel string, settings ...setting) error {
	for _, st := range settings {
		if strings.TrimSpace(st.val) == "" {
			return fmt.Errorf("%s channel: %s is required", channel, st.key)
		}
	}
	return nil
}

// builders maps a channel name to its constructor.
var builders = map[string]func(p Params, log logger) ([]channel, error){
	"telegram": telegramChannels,
	"email":    emailChannels,
	"slack":    slackChannels,
	"webhook":  webhookChannels,
}

func telegramChannels(p Params, log logger) ([]channel, error) {
	if err := required("telegram", setting{"notify_telegram_token", p.TelegramToken},
		setting{"notify_telegram_chat", p.TelegramChat}); err != nil {
		return nil, err
	}
	tg, err := newTelegram(p.TelegramToken)
	if err != nil {
		// the bot token is checked online; keep it out of the log
		log.Print("[WARN] telegram channel disabled: %s", strings.ReplaceAll(err.Error(), p.TelegramToken, "[REDACTED]"))
		return nil, nil
	}
	return []channel{{notifier: tg, dest: "telegram:" + p.TelegramChat + "?parseMode=HTML", escape: true}}, nil
}

func emailChannels(p Params, _ logger) ([]channel, error) {
	if err := required("email", setting{"notify_smtp_host", p.SMTPHost}, setting{"notify_email_from", p.EmailFrom},
		setting{"notify_email_to", strings.Join(p.EmailTo, ",")}); err != nil {
		return nil, err
	}
	em := ntfy.NewEmail(ntfy.SMTPParams{
		Host:     p.SMTPHost,
		Port:     p.SMTPPort,
		Username: p.SMTPUsername,
		Password: p.SMTPPassword,
		StartTLS: p.SMTPStartTLS,
	})
	dest := "mailto:" + strings.Join(p.EmailTo, ",") + "?from=" + url.QueryEscape(p.EmailFrom)
	return []channel{{notifier: em, dest: dest, subject: true}}, nil
}

func slackChannels(p Params, _ logger) ([]channel, error) {
	if err := required("slack", setting{"notify_slack_token", p.SlackToken},
		setting{"notify_slack_channel", p.SlackChannel}); err != nil {
		return nil, err
	}
	return []channel{{notifier: ntfy.NewSlack(p.SlackToken), dest: "slack:" + p.SlackChannel}}, nil
}

func webhookChannels(p Params, _ logger) ([]channel, error) {
	if len(p.WebhookURLs) == 0 {
		return nil, errors.New("webhook channel: notify_webhook_urls is required")
	}
	wh := ntfy.NewWebhook(ntfy.WebhookParams{})
	res := make([]channel, 0, len(p.WebhookURLs))
	for _, u := range p.WebhookURLs {
		res = append(res, channel{notifier: wh, dest: u})
	}
	return res, nil
}
