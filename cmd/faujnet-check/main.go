package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/adapters/filter"
	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/di"
	"github.com/captvenkat/faujnet-backend/internal/ports"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(func(logger *zap.Logger, f ports.EmailFilter, st core.Store) error {
		defer logger.Sync()
		defer st.Stop()
		return check(flags, f, logger)
	}); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func check(flags *di.CLIFlags, f ports.EmailFilter, logger *zap.Logger) error {
	var kind core.EventKind
	switch strings.ToLower(flags.Inbox) {
	case "ask":
		kind = core.EventAsk
	case "submit":
		kind = core.EventSubmit
	default:
		return fmt.Errorf("unknown inbox: %s", flags.Inbox)
	}

	var reader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		reader = file
	} else {
		logger.Info("Reading email from stdin (press Ctrl+D when done)")
		reader = bufio.NewReader(os.Stdin)
	}

	email, err := filter.ParseMessage(reader)
	if err != nil && !errors.Is(err, filter.ErrNoTextContent) {
		return err
	}
	if email.From == "" {
		return errors.New("message has no From address")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = f.ProcessEmail(ctx, kind, email)
	return err
}
