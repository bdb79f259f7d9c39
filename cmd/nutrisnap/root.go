package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/nutrisnap/internal/config"
	"github.com/bryanwahyu/nutrisnap/internal/logging"
)

type commandContext struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := c.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "nutrisnap",
		Short:         "Analyze meal photos and browse meal history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Log level for diagnostics on stderr (default log.level from config)")

	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	return rootCmd
}

// logger writes to stderr at the --log-level flag when given, otherwise at
// the configured level.
func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	level := c.cfg.Log.Level
	if cmd.Flags().Changed("log-level") {
		level = c.logLevel
	}
	return logging.NewWithWriter(cmd.ErrOrStderr(), level, c.cfg.Log.Format)
}
