package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/comexcl/internal/config"
	"github.com/JonMunkholm/comexcl/internal/core"
	"github.com/JonMunkholm/comexcl/internal/logging"
)

// runFlags are the command-line overrides of one import.
type runFlags struct {
	workdir     string
	debug       bool
	limit       int
	enableLimit bool
	persist     bool
}

func newRootCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "comexcl YEAR MONTH",
		Short: "Import one month of the Chile import registry",
		Long: `Resolve the registry resources published for YEAR/MONTH, download and
extract them, and write every record as one JSON envelope to stdout.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parsePeriod(args)
			if err != nil {
				return err
			}
			req.Limit = flags.limit
			req.EnableLimit = flags.enableLimit
			req.Persist = flags.persist

			cfg, err := loadConfig(flags.debug)
			if err != nil {
				return err
			}
			if flags.workdir != "" {
				cfg.Workspace.Dir = flags.workdir
			}

			ctx, stop := handleSignals(cmd.Context())
			defer stop()

			return runImport(ctx, cfg, req, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.workdir, "workdir", "", "Staging directory (overrides WORKDIR)")
	cmd.Flags().BoolVarP(&flags.debug, "debug", "d", false, "Log at debug level")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Maximum number of records to emit")
	cmd.Flags().BoolVar(&flags.enableLimit, "enable-limit", false, "Apply --limit")
	cmd.Flags().BoolVar(&flags.persist, "persist", false, "Also store records in DATABASE_URL")

	cmd.AddCommand(newServeCmd())
	return cmd
}

// parsePeriod reads YEAR and MONTH. The month is checked before any network
// or disk work happens.
func parsePeriod(args []string) (core.Request, error) {
	year, err := strconv.Atoi(args[0])
	if err != nil {
		return core.Request{}, fmt.Errorf("%w: year %q is not a number", core.ErrInvalidPeriod, args[0])
	}
	month, err := strconv.Atoi(args[1])
	if err != nil {
		return core.Request{}, fmt.Errorf("%w: month %q is not a number", core.ErrInvalidPeriod, args[1])
	}
	req := core.Request{Year: year, Month: month}
	if err := req.Validate(); err != nil {
		return core.Request{}, err
	}
	return req, nil
}

// loadConfig reads .env and the environment, then installs the logger on
// stderr.
func loadConfig(debug bool) (*config.Config, error) {
	envErr := godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	logging.Setup(os.Stderr, level, cfg.Logging.Format)

	if envErr != nil {
		slog.Debug("no .env file found, using environment variables")
	} else {
		slog.Debug("loaded .env file (overwriting existing env vars)")
	}
	slog.Debug("configuration loaded", "config", cfg.String())
	return cfg, nil
}

// handleSignals cancels the returned context on SIGINT or SIGTERM.
func handleSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
