package di

import (
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/config"
	"github.com/captvenkat/faujnet-backend/internal/logging"
)

// CLIFlags contains all command line flags for the checker
type CLIFlags struct {
	// Inbox to resolve the message against (ask, submit)
	Inbox string

	// Store flags
	StoreType  string
	SQLitePath string

	// Policy seed flags
	RateLimit    int
	BanThreshold int

	// Input flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}
	RegisterFlags(flag.CommandLine, flags)
	flag.Parse()
	return flags
}

// RegisterFlags binds the checker flags to fs
func RegisterFlags(fs *flag.FlagSet, flags *CLIFlags) {
	fs.StringVar(&flags.Inbox, "inbox", "ask", "Inbox the message was sent to (ask, submit)")

	fs.StringVar(&flags.StoreType, "store", "memory", "Store type (memory, sqlite)")
	fs.StringVar(&flags.SQLitePath, "sqlite-path", "faujnet.db", "SQLite database path when -store=sqlite")

	fs.IntVar(&flags.RateLimit, "rate-limit", 10, "Messages per sender per hour")
	fs.IntVar(&flags.BanThreshold, "ban-threshold", 20, "Trust score below which senders are shadow banned")

	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")
}

// BuildCLIContainer creates and configures a dependency injection container for the checker
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewWithFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			cfg.GetViper().Set("server.filter_type", "cli")
			cfg.GetViper().Set("mailer.mode", "log")
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)
	v.Set("mailer.mode", "log")

	v.Set("store.type", flags.StoreType)
	v.Set("store.sqlite_path", flags.SQLitePath)

	v.Set("policy.ask_enabled", true)
	v.Set("policy.submit_enabled", true)
	v.Set("policy.rate_limit_per_hour", flags.RateLimit)
	v.Set("policy.ban_threshold", flags.BanThreshold)

	return config.NewFromViper(v)
}
