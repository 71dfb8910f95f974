package config

import (
	"fmt"
	"time"

	"github.com/captvenkat/faujnet-backend/internal/core"
)

// StoreConfig selects and locates the persistence backend
type StoreConfig struct {
	Type             string
	CleanupFrequency time.Duration
	Retention        time.Duration
	SQLitePath       string
	MySQLDSN         string
	PostgresDSN      string
}

// ServerConfig configures the inbound mail listener
type ServerConfig struct {
	FilterType           string
	ListenAddress        string
	Domain               string
	AcceptedDomains      []string
	AskInbox             string
	SubmitInbox          string
	MaxMessagesPerSecond float64
	MaxBodySize          int
}

// MailerConfig configures outbound reply delivery
type MailerConfig struct {
	Mode         string
	RelayAddress string
	Username     string
	Password     string
	StartTLS     bool
	AskFrom      string
	SubmitFrom   string
	NATSURL      string
	NATSSubject  string
}

// HTTPConfig configures the ops HTTP server
type HTTPConfig struct {
	ListenAddress string
	APIKey        string
}

// GetStore returns the store configuration
func (c *Config) GetStore() (StoreConfig, error) {
	cleanup, err := c.GetDuration("store.cleanup_frequency")
	if err != nil {
		return StoreConfig{}, fmt.Errorf("invalid store cleanup frequency: %w", err)
	}
	retention, err := c.GetDuration("store.retention")
	if err != nil {
		return StoreConfig{}, fmt.Errorf("invalid store retention: %w", err)
	}
	return StoreConfig{
		Type:             c.GetString("store.type"),
		CleanupFrequency: cleanup,
		Retention:        retention,
		SQLitePath:       c.GetString("store.sqlite_path"),
		MySQLDSN:         c.GetString("store.mysql_dsn"),
		PostgresDSN:      c.GetString("store.postgres_dsn"),
	}, nil
}

// GetServer returns the inbound server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:           c.GetString("server.filter_type"),
		ListenAddress:        c.GetString("server.listen_address"),
		Domain:               c.GetString("server.domain"),
		AcceptedDomains:      c.GetStringSlice("server.accepted_domains"),
		AskInbox:             c.GetString("server.ask_inbox"),
		SubmitInbox:          c.GetString("server.submit_inbox"),
		MaxMessagesPerSecond: c.GetFloat64("server.max_messages_per_second"),
		MaxBodySize:          c.GetInt("server.max_body_size"),
	}
}

// GetMailer returns the outbound delivery configuration
func (c *Config) GetMailer() MailerConfig {
	return MailerConfig{
		Mode:         c.GetString("mailer.mode"),
		RelayAddress: c.GetString("mailer.relay_address"),
		Username:     c.GetString("mailer.username"),
		Password:     c.GetString("mailer.password"),
		StartTLS:     c.GetBool("mailer.starttls"),
		AskFrom:      c.GetString("mailer.ask_from"),
		SubmitFrom:   c.GetString("mailer.submit_from"),
		NATSURL:      c.GetString("mailer.nats_url"),
		NATSSubject:  c.GetString("mailer.nats_subject"),
	}
}

// GetHTTP returns the ops HTTP configuration
func (c *Config) GetHTTP() HTTPConfig {
	return HTTPConfig{
		ListenAddress: c.GetString("http.listen_address"),
		APIKey:        c.GetString("http.api_key"),
	}
}

// GetPolicy returns the seed values for the live flags
func (c *Config) GetPolicy() core.Settings {
	return core.Settings{
		AskEnabled:       c.GetBool("policy.ask_enabled"),
		SubmitEnabled:    c.GetBool("policy.submit_enabled"),
		OutboundEnabled:  c.GetBool("policy.outbound_enabled"),
		SafeMode:         c.GetBool("policy.safe_mode"),
		RateLimitPerHour: c.GetInt("policy.rate_limit_per_hour"),
		BanThreshold:     c.GetInt("policy.ban_threshold"),
	}
}
