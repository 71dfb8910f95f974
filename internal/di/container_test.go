package di

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captvenkat/faujnet-backend/internal/adapters/filter"
	"github.com/captvenkat/faujnet-backend/internal/config"
	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/ports"
)

func TestCLIContainerResolvesFilter(t *testing.T) {
	flags := &CLIFlags{}
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	RegisterFlags(fs, flags)
	require.NoError(t, fs.Parse([]string{"-inbox", "submit", "-rate-limit", "3"}))

	container, err := BuildCLIContainer(flags)
	require.NoError(t, err)

	err = container.Invoke(func(f ports.EmailFilter, st core.Store, cfg *config.Config) {
		defer st.Stop()
		assert.IsType(t, &filter.CliFilter{}, f)
		assert.Equal(t, "memory", cfg.GetString("store.type"))
		assert.Equal(t, 3, cfg.GetPolicy().RateLimitPerHour)
	})
	require.NoError(t, err)
	assert.Equal(t, "submit", flags.Inbox)
}

func TestCreateConfigFromFlagsSeedsPolicy(t *testing.T) {
	cfg := createConfigFromFlags(&CLIFlags{StoreType: "memory", RateLimit: 5, BanThreshold: 40})
	policy := cfg.GetPolicy()
	assert.True(t, policy.AskEnabled)
	assert.True(t, policy.SubmitEnabled)
	assert.Equal(t, 5, policy.RateLimitPerHour)
	assert.Equal(t, 40, policy.BanThreshold)
	assert.Equal(t, "cli", cfg.GetServer().FilterType)
}
