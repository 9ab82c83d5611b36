package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/ssaito/mute-reminder/internal/domain/voice"
	"github.com/ssaito/mute-reminder/internal/logger"
)

// run is the task loop: sleep the initial delay, then notify and
// re-check on the repeat interval until the member unmutes, vanishes
// or the task is cancelled. Cleanup is deferred so the registry
// self-removal happens on every exit path, cancellation included.
func (s *Service) run(ctx context.Context, t *Task) {
	defer close(t.done)
	defer s.registry.removeIfCurrent(t.key, t)

	ctx = logger.WithKV(logger.WithName(ctx, "task"), "key", t.key.String())
	logger.Debug(ctx, "Reminder task started")

	if !sleep(ctx, s.settings.ReminderDelay) {
		logger.Debug(ctx, "Reminder task cancelled during initial delay")

		return
	}

	for {
		state, err := s.lookup.MemberVoiceState(ctx, t.key.GuildID, t.key.MemberID)
		if err != nil {
			logger.WarnKV(ctx, "Member lookup failed, stopping reminders", "error", err)

			return
		}

		if state == nil {
			logger.Debug(ctx, "Guild or member gone, stopping reminders")

			return
		}

		status := state.Status
		if !voice.IsMuted(&status, s.settings.CountDeafAsMute) {
			logger.Debugf(ctx, "%s is no longer muted, stopping reminders", state.DisplayName)

			return
		}

		// Destination derives from the member's current channel, not
		// the one they were in when the timer started.
		if destination, ok := s.notifier.ResolveDestination(ctx, t.key.GuildID, status.ChannelID); ok {
			text := s.reminderText(state.DisplayName)
			logger.InfoKV(ctx, "Sending mute reminder", "member", state.DisplayName, "destination", destination)

			if err := s.notifier.Send(ctx, destination, text); err != nil {
				// Best effort: the next interval tries again.
				logger.ErrorKV(ctx, "Reminder delivery failed", "destination", destination, "error", err)
			}
		} else {
			logger.Debug(ctx, "No destination for reminder, skipping send")
		}

		if !s.waitInterval(ctx, t.key) {
			return
		}
	}
}

// waitInterval sleeps the repeat interval in polling slices, re-reading
// the member's status at every slice boundary. It returns false when
// the task must terminate: cancelled, member gone, or unmuted
// mid-interval.
func (s *Service) waitInterval(ctx context.Context, key voice.Key) bool {
	slices := int(s.settings.RepeatInterval / s.settings.PollingSlice)
	if slices < 1 {
		slices = 1
	}

	for i := 0; i < slices; i++ {
		if !sleep(ctx, s.settings.PollingSlice) {
			logger.Debug(ctx, "Reminder task cancelled during repeat interval")

			return false
		}

		state, err := s.lookup.MemberVoiceState(ctx, key.GuildID, key.MemberID)
		if err != nil {
			logger.WarnKV(ctx, "Member lookup failed, stopping reminders", "error", err)

			return false
		}

		if state == nil {
			logger.Debug(ctx, "Guild or member gone, stopping reminders")

			return false
		}

		status := state.Status
		if !voice.IsMuted(&status, s.settings.CountDeafAsMute) {
			logger.Debugf(ctx, "%s unmuted mid-interval, stopping reminders", state.DisplayName)

			return false
		}
	}

	return true
}

// reminderText renders the reminder payload: who, how long they have
// been muted, and when the next check happens.
func (s *Service) reminderText(displayName string) string {
	return fmt.Sprintf("%s has been muted for %d+ minutes. Next reminder in %d minutes.",
		displayName,
		int(s.settings.ReminderDelay.Minutes()),
		int(s.settings.RepeatInterval.Minutes()))
}

// sleep suspends for d, returning false when ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
