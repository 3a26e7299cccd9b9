package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesLoader_Load_EmbeddedOnly(t *testing.T) {
	v, err := newValuesLoader(defaultsFS).Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", v.BaseURL)
	assert.Equal(t, 0, v.SlowMoMs)
	assert.True(t, v.SlowMoMsSet)
	assert.Equal(t, 10000, v.ActionTimeoutMs)
	assert.Equal(t, 300, v.SettleDelayMs)
	assert.Equal(t, 150, v.FieldDelayMs)
	assert.Equal(t, 30000, v.ReportTimeoutMs)
	assert.Equal(t, 10000, v.NotifyTimeoutMs)
	assert.Equal(t, "claude", v.ClaudeCommand)
	assert.Equal(t, "--print --output-format stream-json --verbose", v.ClaudeArgs)
	assert.Equal(t, "gpt-4o-mini", v.OpenAIModel)
}

func TestValuesLoader_Load_LocalOverridesGlobal(t *testing.T) {
	tmp := t.TempDir()
	global := filepath.Join(tmp, "global")
	local := filepath.Join(tmp, "local")
	require.NoError(t, os.WriteFile(global, []byte("browser = firefox\npoll_interval_ms = 500\nnotify_channels = telegram\n"), 0o600))
	require.NoError(t, os.WriteFile(local, []byte("poll_interval_ms = 100\nassist_enabled = true\nassist_provider = openai\n"), 0o600))

	v, err := newValuesLoader(defaultsFS).Load(local, global)
	require.NoError(t, err)
	assert.Equal(t, "firefox", v.Browser)
	assert.Equal(t, 100, v.PollIntervalMs)
	assert.Equal(t, []string{"telegram"}, v.NotifyChannels)
	assert.True(t, v.AssistEnabled)
	assert.Equal(t, "openai", v.AssistProvider)
}

func TestValuesLoader_Load_ExplicitZeros(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, v Values)
	}{
		{"field delay", "field_delay_ms = 0", func(t *testing.T, v Values) {
			assert.Equal(t, 0, v.FieldDelayMs)
			assert.True(t, v.FieldDelayMsSet)
		}},
		{"headless false", "headless = false", func(t *testing.T, v Values) {
			assert.False(t, v.Headless)
			assert.True(t, v.HeadlessSet)
		}},
		{"notify on failure false", "notify_on_failure = false", func(t *testing.T, v Values) {
			assert.False(t, v.NotifyOnFailure)
			assert.True(t, v.NotifyOnFailureSet)
		}},
		{"report timeout zero", "report_timeout_ms = 0", func(t *testing.T, v Values) {
			assert.Equal(t, 0, v.ReportTimeoutMs)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config")
			require.NoError(t, os.WriteFile(path, []byte(tc.line+"\n"), 0o600))
			v, err := newValuesLoader(defaultsFS).Load("", path)
			require.NoError(t, err)
			tc.check(t, v)
		})
	}
}

func TestValuesLoader_Load_LocalExplicitFalseOverridesGlobalTrue(t *testing.T) {
	tmp := t.TempDir()
	global := filepath.Join(tmp, "global")
	local := filepath.Join(tmp, "local")
	require.NoError(t, os.WriteFile(global, []byte("assist_enabled = true\n"), 0o600))
	require.NoError(t, os.WriteFile(local, []byte("assist_enabled = false\n"), 0o600))

	v, err := newValuesLoader(defaultsFS).Load(local, global)
	require.NoError(t, err)
	assert.False(t, v.AssistEnabled)
}

func TestValuesLoader_Load_AllCommentedConfigFallsBackToEmbedded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("# base_url = https://nowhere\n# headless = false\n\n"), 0o600))

	v, err := newValuesLoader(defaultsFS).Load("", path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", v.BaseURL)
	assert.True(t, v.Headless)
}

func TestValuesLoader_Load_NonExistentFile(t *testing.T) {
	v, err := newValuesLoader(defaultsFS).Load("/nonexistent/local", "/nonexistent/global")
	require.NoError(t, err)
	assert.Equal(t, "chromium", v.Browser)
}

func TestValuesLoader_parseValuesFromFile_PermissionDenied(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("headless = true"), 0o600))
	require.NoError(t, os.Chmod(path, 0o000))
	t.Cleanup(func() { _ = os.Chmod(path, 0o600) })

	_, err := newValuesLoader(defaultsFS).parseValuesFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValuesLoader_parseValuesFromBytes_NotifyFields(t *testing.T) {
	data := `notify_channels = telegram, email,, webhook
notify_telegram_token = 123:abc
notify_telegram_chat = -100500
notify_smtp_host = smtp.example.com
notify_smtp_port = 587
notify_smtp_username = bot
notify_smtp_password = secret
notify_smtp_starttls = true
notify_email_from = e2e@example.com
notify_email_to = qa@example.com, dev@example.com
notify_webhook_urls = https://hooks.example.com/x
`
	v, err := newValuesLoader(defaultsFS).parseValuesFromBytes([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"telegram", "email", "webhook"}, v.NotifyChannels)
	assert.Equal(t, "123:abc", v.NotifyTelegramToken)
	assert.Equal(t, "-100500", v.NotifyTelegramChat)
	assert.Equal(t, "smtp.example.com", v.NotifySMTPHost)
	assert.Equal(t, 587, v.NotifySMTPPort)
	assert.Equal(t, "bot", v.NotifySMTPUsername)
	assert.Equal(t, "secret", v.NotifySMTPPassword)
	assert.True(t, v.NotifySMTPStartTLS)
	assert.Equal(t, "e2e@example.com", v.NotifyEmailFrom)
	assert.Equal(t, []string{"qa@example.com", "dev@example.com"}, v.NotifyEmailTo)
	assert.Equal(t, []string{"https://hooks.example.com/x"}, v.NotifyWebhookURLs)
}

func TestValuesLoader_parseValuesFromBytes_InvalidINI(t *testing.T) {
	_, err := newValuesLoader(defaultsFS).parseValuesFromBytes([]byte("[unclosed section\nkey = value"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValuesLoader_parseValuesFromBytes_FirstErrorWins(t *testing.T) {
	_, err := newValuesLoader(defaultsFS).parseValuesFromBytes([]byte("headless = nope\nslow_mo_ms = x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid headless")
}

func TestValues_mergeFrom(t *testing.T) {
	dst := Values{BaseURL: "http://a", PollIntervalMs: 250, PollIntervalMsSet: true, ForceFallback: true,
		ForceFallbackSet: true, NotifyChannels: []string{"slack"}, NotifySMTPPort: 25}
	src := Values{OutcomeTimeoutMs: 0, OutcomeTimeoutMsSet: true, ForceFallback: false, ForceFallbackSet: true,
		NotifySMTPPort: 0, OpenAIBaseURL: "http://llm.local/v1"}

	dst.mergeFrom(&src)
	assert.Equal(t, "http://a", dst.BaseURL, "empty string does not override")
	assert.Equal(t, 250, dst.PollIntervalMs, "unset int does not override")
	assert.Equal(t, 0, dst.OutcomeTimeoutMs)
	assert.True(t, dst.OutcomeTimeoutMsSet)
	assert.False(t, dst.ForceFallback, "explicit false overrides")
	assert.Equal(t, []string{"slack"}, dst.NotifyChannels)
	assert.Equal(t, 25, dst.NotifySMTPPort)
	assert.Equal(t, "http://llm.local/v1", dst.OpenAIBaseURL)
}
