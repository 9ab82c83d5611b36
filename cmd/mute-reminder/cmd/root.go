package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssaito/mute-reminder/internal/config"
	"github.com/ssaito/mute-reminder/internal/service/bot"
	"github.com/ssaito/mute-reminder/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the bot.
	rootCmd = &cobra.Command{
		Use:   "mute-reminder",
		Short: "Run the voice-channel mute reminder bot.",
		Long: `Starts the Discord bot that watches voice states and reminds members
who stay muted.

A member who mutes (or deafens, if count_deaf_as_mute is set) gets a
reminder in their voice channel after reminder_delay_minutes, repeated
every repeat_interval_minutes until they unmute or disconnect. The
!muted command lists the muted members of the caller's voice channel.
The bot token is read from the settings file or the DISCORD_TOKEN
environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &bot.Options{
				ConfigPath: configPath,
				LogLevel:   logLevel,
			}

			return bot.Run(ctx, options)
		},
	}
)

// Execute runs the mute-reminder CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level override (debug, info, warn, error)")
}
