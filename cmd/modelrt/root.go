package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelrt/internal/config"
)

// app carries state resolved by the root command for its subcommands.
type app struct {
	configPath string
	logLevel   string

	cfg config.Config
	log zerolog.Logger
	out io.Writer
}

func buildRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}
	root := &cobra.Command{
		Use:           "modelrt",
		Short:         "Local model runtime: session manager, decode engine and worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (.yaml|.yml|.json|.toml); MODELRT_* env vars override it")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(a.configPath)
		if err != nil {
			return err
		}
		if a.logLevel != "" {
			cfg.LogLevel = a.logLevel
		}
		a.cfg = cfg
		a.log = newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
		a.out = cmd.OutOrStdout()
		return nil
	}

	root.AddCommand(
		newServeCmd(a),
		newWorkerCmd(a),
		newGenerateCmd(a),
		newModelsCmd(a),
	)
	return root
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
