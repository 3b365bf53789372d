// Package cli provides the command-line interface for the sentiment alert service.
package cli

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sentiment-alerts/internal/config"
	"sentiment-alerts/internal/logging"
)

// Version information
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// App holds state shared by the commands. Config is loaded lazily so that
// commands like "config init" work before a valid config exists.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	configPath string
	debug      bool
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "sentiment-alerts",
		Short: "Sentiment threshold alerts for a watchlist of tickers",
		Long: `sentiment-alerts polls a sentiment source for a configured set of tickers and
sends rate-limited SMS/email alerts when a score crosses the positive or
negative threshold.

Use 'sentiment-alerts check' to run one cycle, or 'sentiment-alerts run' to
schedule cycles and serve health and metrics endpoints.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.configPath, _ = cmd.Flags().GetString("config")
			app.debug, _ = cmd.Flags().GetBool("debug")
			if app.debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory or config.toml path (default: ~/.config/sentiment-alerts)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newCheckCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))

	return rootCmd
}

// loadConfig reads and validates the configuration once, then rebuilds the
// logger from its logging section.
func (app *App) loadConfig() (*config.Config, error) {
	if app.Config != nil {
		return app.Config, nil
	}

	var (
		cfg *config.Config
		err error
	)
	if strings.HasSuffix(app.configPath, ".toml") {
		cfg, err = config.LoadFile(app.configPath)
	} else {
		cfg, err = config.Load(app.configPath)
	}
	if err != nil {
		return nil, err
	}

	app.Config = cfg
	app.Logger = newLogger(cfg.Logging, app.debug)
	return cfg, nil
}

// configDir returns the directory the config is read from.
func (app *App) configDir() string {
	switch {
	case app.configPath == "":
		return config.DefaultConfigDir()
	case strings.HasSuffix(app.configPath, ".toml"):
		return filepath.Dir(app.configPath)
	default:
		return app.configPath
	}
}

func newLogger(cfg config.LoggingConfig, debug bool) zerolog.Logger {
	lc := logging.DefaultLogConfig()
	if cfg.Level != "" {
		lc.Level = cfg.Level
	}
	if debug {
		lc.Level = "debug"
	}
	lc.File = cfg.File
	if cfg.FilePath != "" {
		lc.FilePath = cfg.FilePath
	}
	return logging.NewLoggerWithConfig(lc)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("sentiment-alerts v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}
