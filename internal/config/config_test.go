package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	st, err := cfg.GetStore()
	require.NoError(t, err)
	assert.Equal(t, "memory", st.Type)
	assert.Equal(t, time.Hour, st.CleanupFrequency)
	assert.Equal(t, 48*time.Hour, st.Retention)

	srv := cfg.GetServer()
	assert.Equal(t, "smtp", srv.FilterType)
	assert.Equal(t, "ask", srv.AskInbox)
	assert.Equal(t, "submit", srv.SubmitInbox)
	assert.Empty(t, srv.AcceptedDomains)

	assert.Equal(t, "log", cfg.GetMailer().Mode)

	policy := cfg.GetPolicy()
	assert.True(t, policy.AskEnabled)
	assert.False(t, policy.OutboundEnabled)
	assert.Equal(t, 10, policy.RateLimitPerHour)
	assert.Equal(t, 20, policy.BanThreshold)
}

func TestYAMLOverrides(t *testing.T) {
	v := NewEmptyViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
store:
  type: postgres
  retention: 72h
server:
  accepted_domains: [faujnet.in, mail.faujnet.in]
mailer:
  mode: nats
policy:
  outbound_enabled: true
  ban_threshold: 30
`)))
	cfg := NewFromViper(v)

	st, err := cfg.GetStore()
	require.NoError(t, err)
	assert.Equal(t, "postgres", st.Type)
	assert.Equal(t, 72*time.Hour, st.Retention)
	assert.Equal(t, []string{"faujnet.in", "mail.faujnet.in"}, cfg.GetServer().AcceptedDomains)
	assert.Equal(t, "nats", cfg.GetMailer().Mode)
	assert.True(t, cfg.GetPolicy().OutboundEnabled)
	assert.Equal(t, 30, cfg.GetPolicy().BanThreshold)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FAUJNET_STORE_TYPE", "sqlite")
	t.Setenv("FAUJNET_MAILER_MODE", "smtp")

	cfg, err := NewWithFile("")
	require.NoError(t, err)

	st, err := cfg.GetStore()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", st.Type)
	assert.Equal(t, "smtp", cfg.GetMailer().Mode)
}

func TestInvalidDuration(t *testing.T) {
	v := NewEmptyViper()
	v.Set("store.retention", "forever")
	_, err := NewFromViper(v).GetStore()
	assert.Error(t, err)
}
