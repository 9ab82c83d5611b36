package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ssaito/mute-reminder/internal/config"
	"github.com/ssaito/mute-reminder/internal/discord"
	"github.com/ssaito/mute-reminder/internal/logger"
	"github.com/ssaito/mute-reminder/internal/service/reminder"
)

// Options controls the bot process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
}

// shutdownTimeout bounds the wait for reminder tasks on shutdown.
const shutdownTimeout = 5 * time.Second

// Run connects the bot and blocks until the context is cancelled.
// Reminder tasks inherit the context, so cancellation tears them down;
// Shutdown then waits for them to finish cleanly.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "mute-reminder")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Command line log level overrides the configured one.
	levelName := cfg.LogLevel
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}

	if level, ok := logger.ParseLogLevel(levelName); ok {
		logger.SetLevel(level)
	} else {
		logger.Warnf(ctx, "Unknown log level %q, keeping %s", levelName, logger.Level())
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	session.Identify.Intents = discord.GatewayIntents

	// Wire the platform adapter into the reminder core.
	adapter := discord.NewAdapter(session, cfg.FallbackChannelID)
	svc := reminder.NewService(reminder.Settings{
		ReminderDelay:   cfg.ReminderDelay(),
		RepeatInterval:  cfg.RepeatInterval(),
		CountDeafAsMute: cfg.DeafCountsAsMute(),
	}, adapter, adapter, adapter)

	discord.Register(ctx, session, svc, adapter)

	if err := session.Open(); err != nil {
		return fmt.Errorf("open gateway session: %w", err)
	}

	logger.InfoKV(ctx, "Bot is online and monitoring voice states",
		"reminder_delay", cfg.ReminderDelay().String(),
		"repeat_interval", cfg.RepeatInterval().String(),
		"count_deaf_as_mute", cfg.DeafCountsAsMute())

	<-ctx.Done()
	logger.InfoKV(ctx, "Shutting down", "active_timers", svc.ActiveTimers())

	// The run context is already cancelled; give the drain its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	svc.Shutdown(shutdownCtx)

	if err := session.Close(); err != nil {
		return fmt.Errorf("close gateway session: %w", err)
	}

	logger.Info(ctx, "Bot stopped")

	return nil
}
