package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettingsFromFlagsMissingFlagsAreConservative(t *testing.T) {
	s := SettingsFromFlags(nil)
	assert.False(t, s.AskEnabled)
	assert.False(t, s.SubmitEnabled)
	assert.False(t, s.OutboundEnabled)
	assert.False(t, s.SafeMode)
	assert.Equal(t, DefaultRateLimitPerHour, s.RateLimitPerHour)
	assert.Equal(t, DefaultBanThreshold, s.BanThreshold)
}

func TestSettingsFromFlagsNumericValues(t *testing.T) {
	tests := []struct {
		name      string
		limit     string
		threshold string
		wantLimit int
		wantBan   int
	}{
		{"valid", `{"limit": 25}`, `{"threshold": 35}`, 25, 35},
		{"zero threshold allowed", `{"limit": 1}`, `{"threshold": 0}`, 1, 0},
		{"zero limit falls back", `{"limit": 0}`, `{"threshold": 10}`, DefaultRateLimitPerHour, 10},
		{"garbage", `not json`, `{"threshold": "x"}`, DefaultRateLimitPerHour, DefaultBanThreshold},
		{"wrong field", `{"max": 4}`, `{"limit": 4}`, DefaultRateLimitPerHour, DefaultBanThreshold},
		{"negative", `{"limit": -3}`, `{"threshold": -1}`, DefaultRateLimitPerHour, DefaultBanThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SettingsFromFlags([]ConfigFlag{
				{Key: FlagRateLimitPerHour, Value: tt.limit, Enabled: true},
				{Key: FlagBanThreshold, Value: tt.threshold, Enabled: true},
			})
			assert.Equal(t, tt.wantLimit, s.RateLimitPerHour)
			assert.Equal(t, tt.wantBan, s.BanThreshold)
		})
	}
}

func TestDefaultFlagsRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	in := Settings{AskEnabled: true, SubmitEnabled: true, OutboundEnabled: true, RateLimitPerHour: 7, BanThreshold: 15}

	flags := DefaultFlags(in, at)
	assert.Len(t, flags, 6)

	out := SettingsFromFlags(flags)
	in.Version = at.UnixNano()
	assert.Equal(t, in, out)
}
