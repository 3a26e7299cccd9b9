package config

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Values holds scalar configuration values.
// Fields ending in *Set (e.g., HeadlessSet) track whether that field was explicitly
// set in config. This allows distinguishing explicit false/0 from "not set", enabling
// proper merge behavior where local config can override global config with zero values.
type Values struct {
	BaseURL      string
	Browser      string // chromium, firefox or webkit
	Headless     bool
	HeadlessSet  bool // tracks if headless was explicitly set
	SlowMoMs     int
	SlowMoMsSet  bool // tracks if slow_mo_ms was explicitly set
	ScenariosDir string

	PollIntervalMs        int
	PollIntervalMsSet     bool
	EnumerateTimeoutMs    int
	EnumerateTimeoutMsSet bool
	OutcomeTimeoutMs      int
	OutcomeTimeoutMsSet   bool
	ActionTimeoutMs       int
	ActionTimeoutMsSet    bool
	SettleDelayMs         int
	SettleDelayMsSet      bool
	FieldDelayMs          int
	FieldDelayMsSet       bool
	ForceFallback         bool
	ForceFallbackSet      bool // tracks if force_fallback was explicitly set
	ReportTimeoutMs       int
	ReportTimeoutMsSet    bool

	NotifyChannels      []string
	NotifyOnFailure     bool
	NotifyOnFailureSet  bool
	NotifyOnTimeout     bool
	NotifyOnTimeoutSet  bool
	NotifyTimeoutMs     int
	NotifyTimeoutMsSet  bool
	NotifyTelegramToken string
	NotifyTelegramChat  string
	NotifySlackToken    string
	NotifySlackChannel  string
	NotifySMTPHost      string
	NotifySMTPPort      int
	NotifySMTPUsername  string
	NotifySMTPPassword  string
	NotifySMTPStartTLS  bool
	NotifyEmailFrom     string
	NotifyEmailTo       []string
	NotifyWebhookURLs   []string
	NotifyCustomScript  string

	AssistEnabled    bool
	AssistEnabledSet bool // tracks if assist_enabled was explicitly set
	AssistProvider   string // claude or openai
	ClaudeCommand    string
	ClaudeArgs       string
	OpenAIModel      string
	OpenAIBaseURL    string
	OCRCommand       string
}

// valuesLoader reads Values layers over the embedded defaults.
type valuesLoader struct {
	embedFS embed.FS
}

func newValuesLoader(embedFS embed.FS) *valuesLoader {
	return &valuesLoader{embedFS: embedFS}
}

// Load merges embedded defaults, the global and the local config file, local wins.
// Paths are config files, not directories.
func (vl *valuesLoader) Load(localConfigPath, globalConfigPath string) (Values, error) {
	return loadLayered(vl.embedFS, localConfigPath, globalConfigPath, vl.parseLayer, (*Values).mergeFrom)
}

// parseValuesFromFile parses a single config file, missing files give empty Values.
func (vl *valuesLoader) parseValuesFromFile(path string) (Values, error) {
	data, err := readLayer(path)
	if err != nil || data == nil {
		return Values{}, err
	}
	return vl.parseLayer(data)
}

// parseLayer treats a file of comments only (the installed template) as empty, so the
// embedded defaults stay in effect.
func (vl *valuesLoader) parseLayer(data []byte) (Values, error) {
	if strings.TrimSpace(stripComments(string(data))) == "" {
		return Values{}, nil
	}
	return vl.parseValuesFromBytes(data)
}

// parseValuesFromBytes parses configuration from a byte slice into Values.
func (vl *valuesLoader) parseValuesFromBytes(data []byte) (Values, error) {
	// ignoreInlineComment: true prevents # from being treated as inline comment marker
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return Values{}, fmt.Errorf("parse config: %w", err)
	}

	var v Values
	p := sectionParser{section: cfg.Section("")} // default section (no section header)

	// browser
	p.str("base_url", &v.BaseURL)
	p.str("browser", &v.Browser)
	p.boolean("headless", &v.Headless, &v.HeadlessSet)
	p.nonNegInt("slow_mo_ms", &v.SlowMoMs, &v.SlowMoMsSet)
	p.str("scenarios_dir", &v.ScenariosDir)

	// timing
	p.nonNegInt("poll_interval_ms", &v.PollIntervalMs, &v.PollIntervalMsSet)
	p.nonNegInt("enumerate_timeout_ms", &v.EnumerateTimeoutMs, &v.EnumerateTimeoutMsSet)
	p.nonNegInt("outcome_timeout_ms", &v.OutcomeTimeoutMs, &v.OutcomeTimeoutMsSet)
	p.nonNegInt("action_timeout_ms", &v.ActionTimeoutMs, &v.ActionTimeoutMsSet)
	p.nonNegInt("settle_delay_ms", &v.SettleDelayMs, &v.SettleDelayMsSet)
	p.nonNegInt("field_delay_ms", &v.FieldDelayMs, &v.FieldDelayMsSet)
	p.boolean("force_fallback", &v.ForceFallback, &v.ForceFallbackSet)
	p.nonNegInt("report_timeout_ms", &v.ReportTimeoutMs, &v.ReportTimeoutMsSet)

	// notifications
	p.list("notify_channels", &v.NotifyChannels)
	p.boolean("notify_on_failure", &v.NotifyOnFailure, &v.NotifyOnFailureSet)
	p.boolean("notify_on_timeout", &v.NotifyOnTimeout, &v.NotifyOnTimeoutSet)
	p.nonNegInt("notify_timeout_ms", &v.NotifyTimeoutMs, &v.NotifyTimeoutMsSet)
	p.str("notify_telegram_token", &v.NotifyTelegramToken)
	p.str("notify_telegram_chat", &v.NotifyTelegramChat)
	p.str("notify_slack_token", &v.NotifySlackToken)
	p.str("notify_slack_channel", &v.NotifySlackChannel)
	p.str("notify_smtp_host", &v.NotifySMTPHost)
	var portSet, tlsSet bool
	p.nonNegInt("notify_smtp_port", &v.NotifySMTPPort, &portSet)
	p.str("notify_smtp_username", &v.NotifySMTPUsername)
	p.str("notify_smtp_password", &v.NotifySMTPPassword)
	p.boolean("notify_smtp_starttls", &v.NotifySMTPStartTLS, &tlsSet)
	p.str("notify_email_from", &v.NotifyEmailFrom)
	p.list("notify_email_to", &v.NotifyEmailTo)
	p.list("notify_webhook_urls", &v.NotifyWebhookURLs)
	p.str("notify_custom_script", &v.NotifyCustomScript)

	// failure assist
	p.boolean("assist_enabled", &v.AssistEnabled, &v.AssistEnabledSet)
	p.str("assist_provider", &v.AssistProvider)
	p.str("claude_command", &v.ClaudeCommand)
	p.str("claude_args", &v.ClaudeArgs)
	p.str("openai_model", &v.OpenAIModel)
	p.str("openai_base_url", &v.OpenAIBaseURL)
	p.str("ocr_command", &v.OCRCommand)

	if p.err != nil {
		return Values{}, p.err
	}

	switch v.AssistProvider {
	case "", "claude", "openai":
	default:
		return Values{}, fmt.Errorf("invalid assist_provider: %q, expected claude or openai", v.AssistProvider)
	}
	switch v.Browser {
	case "", "chromium", "firefox", "webkit":
	default:
		return Values{}, fmt.Errorf("invalid browser: %q, expected chromium, firefox or webkit", v.Browser)
	}
	return v, nil
}

// sectionParser reads typed keys from an ini section, keeping the first error.
type sectionParser struct {
	section *ini.Section
	err     error
}

func (p *sectionParser) str(name string, dst *string) {
	if key, err := p.section.GetKey(name); err == nil {
		*dst = strings.TrimSpace(key.String())
	}
}

func (p *sectionParser) boolean(name string, dst, set *bool) {
	key, err := p.section.GetKey(name)
	if err != nil || p.err != nil {
		return
	}
	val, boolErr := key.Bool()
	if boolErr != nil {
		p.err = fmt.Errorf("invalid %s: %w", name, boolErr)
		return
	}
	*dst, *set = val, true
}

func (p *sectionParser) nonNegInt(name string, dst *int, set *bool) {
	key, err := p.section.GetKey(name)
	if err != nil || p.err != nil {
		return
	}
	val, intErr := key.Int()
	if intErr != nil {
		p.err = fmt.Errorf("invalid %s: %w", name, intErr)
		return
	}
	if val < 0 {
		p.err = fmt.Errorf("invalid %s: must be non-negative, got %d", name, val)
		return
	}
	*dst, *set = val, true
}

// list parses a comma-separated value, dropping empty items.
func (p *sectionParser) list(name string, dst *[]string) {
	key, err := p.section.GetKey(name)
	if err != nil {
		return
	}
	for item := range strings.SplitSeq(key.String(), ",") {
		if t := strings.TrimSpace(item); t != "" {
			*dst = append(*dst, t)
		}
	}
}

// mergeFrom merges non-empty values from src into dst.
//
//nolint:gocyclo // flat list of per-key merges
func (dst *Values) mergeFrom(src *Values) {
	mergeStr := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	mergeList := func(d *[]string, s []string) {
		if len(s) > 0 {
			*d = s
		}
	}
	mergeInt := func(d *int, dSet *bool, s int, sSet bool) {
		if sSet {
			*d, *dSet = s, true
		}
	}
	mergeBool := func(d, dSet *bool, s, sSet bool) {
		if sSet {
			*d, *dSet = s, true
		}
	}

	mergeStr(&dst.BaseURL, src.BaseURL)
	mergeStr(&dst.Browser, src.Browser)
	mergeBool(&dst.Headless, &dst.HeadlessSet, src.Headless, src.HeadlessSet)
	mergeInt(&dst.SlowMoMs, &dst.SlowMoMsSet, src.SlowMoMs, src.SlowMoMsSet)
	mergeStr(&dst.ScenariosDir, src.ScenariosDir)

	mergeInt(&dst.PollIntervalMs, &dst.PollIntervalMsSet, src.PollIntervalMs, src.PollIntervalMsSet)
	mergeInt(&dst.EnumerateTimeoutMs, &dst.EnumerateTimeoutMsSet, src.EnumerateTimeoutMs, src.EnumerateTimeoutMsSet)
	mergeInt(&dst.OutcomeTimeoutMs, &dst.OutcomeTimeoutMsSet, src.OutcomeTimeoutMs, src.OutcomeTimeoutMsSet)
	mergeInt(&dst.ActionTimeoutMs, &dst.ActionTimeoutMsSet, src.ActionTimeoutMs, src.ActionTimeoutMsSet)
	mergeInt(&dst.SettleDelayMs, &dst.SettleDelayMsSet, src.SettleDelayMs, src.SettleDelayMsSet)
	mergeInt(&dst.FieldDelayMs, &dst.FieldDelayMsSet, src.FieldDelayMs, src.FieldDelayMsSet)
	mergeBool(&dst.ForceFallback, &dst.ForceFallbackSet, src.ForceFallback, src.ForceFallbackSet)
	mergeInt(&dst.ReportTimeoutMs, &dst.ReportTimeoutMsSet, src.ReportTimeoutMs, src.ReportTimeoutMsSet)

	mergeList(&dst.NotifyChannels, src.NotifyChannels)
	mergeBool(&dst.NotifyOnFailure, &dst.NotifyOnFailureSet, src.NotifyOnFailure, src.NotifyOnFailureSet)
	mergeBool(&dst.NotifyOnTimeout, &dst.NotifyOnTimeoutSet, src.NotifyOnTimeout, src.NotifyOnTimeoutSet)
	mergeInt(&dst.NotifyTimeoutMs, &dst.NotifyTimeoutMsSet, src.NotifyTimeoutMs, src.NotifyTimeoutMsSet)
	mergeStr(&dst.NotifyTelegramToken, src.NotifyTelegramToken)
	mergeStr(&dst.NotifyTelegramChat, src.NotifyTelegramChat)
	mergeStr(&dst.NotifySlackToken, src.NotifySlackToken)
	mergeStr(&dst.NotifySlackChannel, src.NotifySlackChannel)
	mergeStr(&dst.NotifySMTPHost, src.NotifySMTPHost)
	if src.NotifySMTPPort != 0 {
		dst.NotifySMTPPort = src.NotifySMTPPort
	}
	mergeStr(&dst.NotifySMTPUsername, src.NotifySMTPUsername)
	mergeStr(&dst.NotifySMTPPassword, src.NotifySMTPPassword)
	if src.NotifySMTPStartTLS {
		dst.NotifySMTPStartTLS = true
	}
	mergeStr(&dst.NotifyEmailFrom, src.NotifyEmailFrom)
	mergeList(&dst.NotifyEmailTo, src.NotifyEmailTo)
	mergeList(&dst.NotifyWebhookURLs, src.NotifyWebhookURLs)
	mergeStr(&dst.NotifyCustomScript, src.NotifyCustomScript)

	mergeBool(&dst.AssistEnabled, &dst.AssistEnabledSet, src.AssistEnabled, src.AssistEnabledSet)
	mergeStr(&dst.AssistProvider, src.AssistProvider)
	mergeStr(&dst.ClaudeCommand, src.ClaudeCommand)
	mergeStr(&dst.ClaudeArgs, src.ClaudeArgs)
	mergeStr(&dst.OpenAIModel, src.OpenAIModel)
	mergeStr(&dst.OpenAIBaseURL, src.OpenAIBaseURL)
	mergeStr(&dst.OCRCommand, src.OCRCommand)
}
