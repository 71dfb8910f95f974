package core

import (
	"encoding/json"
	"time"
)

// Live configuration keys.
const (
	FlagAskEnabled       = "ASK_BOT_ENABLED"
	FlagSubmitEnabled    = "SUBMIT_BOT_ENABLED"
	FlagOutboundEnabled  = "OUTBOUND_EMAIL_ENABLED"
	FlagSafeMode         = "SAFE_MODE"
	FlagRateLimitPerHour = "RATE_LIMIT_PER_HOUR"
	FlagBanThreshold     = "SHADOW_BAN_THRESHOLD"
)

// Fallbacks used when a numeric flag is missing or unreadable.
const (
	DefaultRateLimitPerHour = 10
	DefaultBanThreshold     = 20
)

// Settings is an immutable snapshot of the live flags, read once per message
type Settings struct {
	AskEnabled       bool
	SubmitEnabled    bool
	OutboundEnabled  bool
	SafeMode         bool
	RateLimitPerHour int
	BanThreshold     int
	// Version is the newest flag update time in Unix nanoseconds.
	Version int64
}

// SettingsFromFlags builds a snapshot. Missing enable flags read as disabled,
// a missing safe-mode flag reads as off.
func SettingsFromFlags(flags []ConfigFlag) Settings {
	s := Settings{
		RateLimitPerHour: DefaultRateLimitPerHour,
		BanThreshold:     DefaultBanThreshold,
	}
	for _, f := range flags {
		switch f.Key {
		case FlagAskEnabled:
			s.AskEnabled = f.Enabled
		case FlagSubmitEnabled:
			s.SubmitEnabled = f.Enabled
		case FlagOutboundEnabled:
			s.OutboundEnabled = f.Enabled
		case FlagSafeMode:
			s.SafeMode = f.Enabled
		case FlagRateLimitPerHour:
			s.RateLimitPerHour = intValue(f.Value, "limit", 1, DefaultRateLimitPerHour)
		case FlagBanThreshold:
			s.BanThreshold = intValue(f.Value, "threshold", 0, DefaultBanThreshold)
		}
		if v := f.UpdatedAt.UnixNano(); v > s.Version {
			s.Version = v
		}
	}
	return s
}

// DefaultFlags returns the flags seeded into an empty store
func DefaultFlags(s Settings, at time.Time) []ConfigFlag {
	return []ConfigFlag{
		{Key: FlagAskEnabled, Value: `{"active": true}`, Enabled: s.AskEnabled, Description: "Enable/disable ASK bot", UpdatedAt: at},
		{Key: FlagSubmitEnabled, Value: `{"active": true}`, Enabled: s.SubmitEnabled, Description: "Enable/disable SUBMIT bot", UpdatedAt: at},
		{Key: FlagOutboundEnabled, Value: `{"active": true}`, Enabled: s.OutboundEnabled, Description: "Enable/disable outbound email", UpdatedAt: at},
		{Key: FlagSafeMode, Value: `{"active": false}`, Enabled: s.SafeMode, Description: "Emergency system shutdown", UpdatedAt: at},
		{Key: FlagRateLimitPerHour, Value: jsonInt("limit", s.RateLimitPerHour), Enabled: true, Description: "Rate limit per sender per hour", UpdatedAt: at},
		{Key: FlagBanThreshold, Value: jsonInt("threshold", s.BanThreshold), Enabled: true, Description: "Trust score for shadow ban", UpdatedAt: at},
	}
}

func intValue(raw, field string, floor, fallback int) int {
	var v map[string]json.Number
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fallback
	}
	n, err := v[field].Int64()
	if err != nil || n < int64(floor) {
		return fallback
	}
	return int(n)
}

func jsonInt(field string, n int) string {
	b, _ := json.Marshal(map[string]int{field: n})
	return string(b)
}
