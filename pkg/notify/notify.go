// Package notify delivers failure reports of registration runs to chat, email, webhooks
// and custom scripts.
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
)

// Params holds configuration for creating a notification Service.
// Embedded directly in Config struct, no intermediate mapping needed.
type Params struct {
	Channels      []string
	OnFailure     bool // failure and aborted runs
	OnTimeout     bool
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

// Service orchestrates sending notifications through configured channels.
type Service struct {
	channels  []channel      // paired notifier + destination
	custom    *customChannel // optional custom script channel
	onFailure bool
	onTimeout bool
	timeoutMs int
	hostname  string // resolved once at creation via os.Hostname()
	log       logger
}

// channel pairs a notifier with its destination URI.
type channel struct {
	notifier   ntfy.Notifier
	dest       string
	htmlEscape bool // true for channels that use HTML parse mode (e.g., telegram)
}

// logger interface for dependency injection.
type logger interface {
	Print(format string, args ...any)
}

// Report describes a run that ended in failure, timeout or abort.
type Report struct {
	Scenario string `json:"scenario"`
	URL      string `json:"url"`
	Outcome  string `json:"outcome"` // terminal run state: failure, timeout or aborted
	Evidence string `json:"evidence,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
	Revision string `json:"revision,omitempty"` // suite revision, branch@hash
	Summary  string `json:"summary,omitempty"`  // LLM summary, when assist is enabled
	PageText string `json:"page_text,omitempty"`

	Screenshot []byte `json:"-"` // full page capture at the time of failure
}

// report outcomes.
const (
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeAborted = "aborted"
)

// New creates a notification Service from the given Params. Returns nil, nil when no
// channels are configured; Send is nil-safe, so callers use the result as is.
// A misconfigured channel is an error, a telegram channel failing its live token check
// is dropped with a warning.
func New(p Params, log logger) (*Service, error) {
	if len(p.Channels) == 0 {
		return nil, nil //nolint:nilnil // no channels configured
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	svc := &Service{onFailure: p.OnFailure, onTimeout: p.OnTimeout, timeoutMs: p.TimeoutMs, hostname: hostname, log: log}
	if svc.timeoutMs <= 0 {
		svc.timeoutMs = 10000
	}

	for _, name := range p.Channels {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "custom" {
			if p.CustomScript == "" {
				return nil, errors.New("custom channel: notify_custom_script is required")
			}
			svc.custom = newCustomChannel(p.CustomScript)
			continue
		}
		build, ok := channelBuilders[name]
		if !ok {
			return nil, fmt.Errorf("unknown notification channel: %q", name)
		}
		chs, bErr := build(p)
		var unavailable *unavailableError
		switch {
		case errors.As(bErr, &unavailable):
			log.Print("[WARN] %s channel disabled: %s", name, unavailable.msg)
			continue
		case bErr != nil:
			return nil, fmt.Errorf("%s channel: %w", name, bErr)
		}
		svc.channels = append(svc.channels, chs...)
	}

	if len(svc.channels) == 0 && svc.custom == nil {
		log.Print("[WARN] all notification channels were disabled due to initialization errors")
	}
	return svc, nil
}

// Send sends a notification for the given report. nil-safe on receiver, callers don't need nil checks.
// checks onFailure/onTimeout flags and sends to all configured channels.
// errors are logged but never returned (best-effort).
func (s *Service) Send(ctx context.Context, r Report) {
	if s == nil {
		return
	}

	switch r.Outcome {
	case OutcomeTimeout:
		if !s.onTimeout {
			return
		}
	case OutcomeFailure, OutcomeAborted:
		if !s.onFailure {
			return
		}
	default:
		return // passed runs are not reported
	}

	msg := s.formatMessage(r)

	timeout := time.Duration(s.timeoutMs) * time.Millisecond
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// send to go-pkgz/notify channels
	for _, ch := range s.channels {
		text := msg
		if ch.htmlEscape {
			text = html.EscapeString(msg)
		}
		if err := ch.notifier.Send(sendCtx, ch.dest, text); err != nil {
			s.log.Print("[WARN] notification failed for %s: %v", ch.notifier, err)
		}
	}

	// send to custom script channel
	if s.custom != nil {
		if err := s.custom.send(sendCtx, r); err != nil {
			s.log.Print("[WARN] custom notification failed: %v", err)
		}
	}
}

// formatMessage creates a plain text notification message from the report.
func (s *Service) formatMessage(r Report) string {
	var b strings.Builder

	switch r.Outcome {
	case OutcomeTimeout:
		fmt.Fprintf(&b, "regcheck timeout on %s\n", s.hostname)
	case OutcomeAborted:
		fmt.Fprintf(&b, "regcheck aborted on %s\n", s.hostname)
	default:
		fmt.Fprintf(&b, "regcheck failure on %s\n", s.hostname)
	}

	b.WriteString("\n")

	if r.Scenario != "" {
		fmt.Fprintf(&b, "scenario: %s\n", r.Scenario)
	}
	if r.URL != "" {
		fmt.Fprintf(&b, "url:      %s\n", r.URL)
	}
	if r.Revision != "" {
		fmt.Fprintf(&b, "revision: %s\n", r.Revision)
	}
	if r.Duration != "" {
		fmt.Fprintf(&b, "duration: %s\n", r.Duration)
	}
	if r.Evidence != "" {
		fmt.Fprintf(&b, "evidence: %s\n", r.Evidence)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "error:    %s\n", r.Error)
	}
	if r.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(r.Summary))
	}

	return b.String()
}

// channelBuilders make go-pkgz/notify channels by name. "custom" is handled by New.
var channelBuilders = map[string]func(Params) ([]channel, error){
	"telegram": buildTelegram,
	"email":    buildEmail,
	"slack":    buildSlack,
	"webhook":  buildWebhooks,
}

// unavailableError marks a channel that is configured but can't be reached at startup.
type unavailableError struct{ msg string }

func (e *unavailableError) Error() string { return e.msg }

// required returns an error naming the first empty key, keys and values in pairs.
func required(kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			return fmt.Errorf("%s is required", kv[i])
		}
	}
	return nil
}

// telegramChannelMaker is swapped in tests, the real one calls the telegram API.
var telegramChannelMaker = makeTelegramChannel

func buildTelegram(p Params) ([]channel, error) {
	if err := required("notify_telegram_token", p.TelegramToken, "notify_telegram_chat", p.TelegramChat); err != nil {
		return nil, err
	}
	c, err := telegramChannelMaker(p)
	if err != nil {
		// token check failed, most likely no network; keep the token out of the log
		return nil, &unavailableError{msg: strings.ReplaceAll(err.Error(), p.TelegramToken, "[REDACTED]")}
	}
	return []channel{c}, nil
}

// makeTelegramChannel sends to telegram:<chat> in HTML parse mode.
func makeTelegramChannel(p Params) (channel, error) {
	tg, err := ntfy.NewTelegram(ntfy.TelegramParams{Token: p.TelegramToken})
	if err != nil {
		return channel{}, fmt.Errorf("create telegram notifier: %w", err)
	}
	return channel{notifier: tg, dest: "telegram:" + p.TelegramChat + "?parseMode=HTML", htmlEscape: true}, nil
}

func buildEmail(p Params) ([]channel, error) {
	if err := required("notify_smtp_host", p.SMTPHost, "notify_email_from", p.EmailFrom); err != nil {
		return nil, err
	}
	if len(p.EmailTo) == 0 {
		return nil, errors.New("notify_email_to is required")
	}
	smtp := ntfy.NewEmail(ntfy.SMTPParams{Host: p.SMTPHost, Port: p.SMTPPort, Username: p.SMTPUsername,
		Password: p.SMTPPassword, StartTLS: p.SMTPStartTLS})
	q := url.Values{}
	q.Set("from", p.EmailFrom)
	q.Set("subject", "regcheck failure report")
	return []channel{{notifier: smtp, dest: "mailto:" + strings.Join(p.EmailTo, ",") + "?" + q.Encode()}}, nil
}

func buildSlack(p Params) ([]channel, error) {
	if err := required("notify_slack_token", p.SlackToken, "notify_slack_channel", p.SlackChannel); err != nil {
		return nil, err
	}
	return []channel{{notifier: ntfy.NewSlack(p.SlackToken), dest: "slack:" + p.SlackChannel}}, nil
}

// buildWebhooks shares one notifier between all urls.
func buildWebhooks(p Params) ([]channel, error) {
	if len(p.WebhookURLs) == 0 {
		return nil, errors.New("notify_webhook_urls is required")
	}
	wh := ntfy.NewWebhook(ntfy.WebhookParams{})
	chs := make([]channel, 0, len(p.WebhookURLs))
	for _, u := range p.WebhookURLs {
		chs = append(chs, channel{notifier: wh, dest: u})
	}
	return chs, nil
}
