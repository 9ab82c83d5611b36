package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/ssaito/mute-reminder/internal/domain/voice"
	"github.com/ssaito/mute-reminder/internal/logger"
)

// DefaultPollingSlice is the granularity at which a sleeping task
// re-checks the mute condition. It bounds the delay between an unmute
// and task termination when no gateway event cancelled the task.
const DefaultPollingSlice = 10 * time.Second

// Settings carries the timing parameters for reminder tasks.
type Settings struct {
	// ReminderDelay is how long a member must stay muted before the
	// first reminder.
	ReminderDelay time.Duration
	// RepeatInterval is the spacing between repeated reminders.
	RepeatInterval time.Duration
	// PollingSlice subdivides RepeatInterval for condition re-checks.
	// Zero means DefaultPollingSlice.
	PollingSlice time.Duration
	// CountDeafAsMute treats deafened members as muted.
	CountDeafAsMute bool
}

// Service detects mute edges on voice-state updates and manages the
// per-member reminder tasks.
type Service struct {
	// settings are the timing parameters, fixed at construction.
	settings Settings
	// lookup resolves live member state.
	lookup Lookup
	// notifier resolves destinations and delivers reminders.
	notifier Notifier
	// lister enumerates voice channel members for the query command.
	lister ChannelLister
	// registry holds the live task handle per member.
	registry *Registry
}

// NewService wires the platform ports into a reminder service.
func NewService(settings Settings, lookup Lookup, notifier Notifier, lister ChannelLister) *Service {
	if settings.PollingSlice <= 0 {
		settings.PollingSlice = DefaultPollingSlice
	}

	return &Service{
		settings: settings,
		lookup:   lookup,
		notifier: notifier,
		lister:   lister,
		registry: NewRegistry(),
	}
}

// HandleVoiceUpdate classifies the before/after status of one member
// and starts, replaces or cancels their reminder task on a mute edge.
// No notification is ever sent from the edge itself. The task spawned
// on a rising edge inherits ctx, so cancelling it tears the task down.
func (s *Service) HandleVoiceUpdate(ctx context.Context, key voice.Key, displayName string, before, after *voice.Status) {
	wasMuted := voice.IsMuted(before, s.settings.CountDeafAsMute)
	nowMuted := voice.IsMuted(after, s.settings.CountDeafAsMute)

	logger.DebugKV(ctx, "Voice state update",
		"member", displayName, "key", key.String(), "was_muted", wasMuted, "now_muted", nowMuted)

	switch {
	case nowMuted && !wasMuted:
		logger.InfoKV(ctx, "Mute timer started", "member", displayName, "key", key.String())
		s.start(ctx, key)
	case wasMuted && !nowMuted:
		logger.InfoKV(ctx, "Mute timer cancelled", "member", displayName, "key", key.String())
		s.registry.Cancel(key)
	}
}

// MutedMembers returns the display names of members in the given voice
// channel whose current status classifies as muted. Pure read, no
// registry state involved.
func (s *Service) MutedMembers(ctx context.Context, guildID, channelID string) ([]string, error) {
	members, err := s.lister.ChannelMembers(ctx, guildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("list channel members: %w", err)
	}

	var names []string

	for _, m := range members {
		status := m.Status
		if voice.IsMuted(&status, s.settings.CountDeafAsMute) {
			names = append(names, m.DisplayName)
		}
	}

	return names, nil
}

// ActiveTimers returns the number of live reminder tasks.
func (s *Service) ActiveTimers() int {
	return s.registry.Len()
}

// Shutdown cancels every live task and waits for each to finish, giving
// up when ctx expires.
func (s *Service) Shutdown(ctx context.Context) {
	for _, t := range s.registry.snapshot() {
		t.Cancel()

		select {
		case <-t.Done():
		case <-ctx.Done():
			return
		}
	}
}

// start spawns a fresh task for key, replacing any previous one.
func (s *Service) start(ctx context.Context, key voice.Key) {
	s.registry.StartOrReplace(key, func() *Task {
		taskCtx, cancel := context.WithCancel(ctx)
		t := &Task{
			key:    key,
			cancel: cancel,
			done:   make(chan struct{}),
		}

		go s.run(taskCtx, t)

		return t
	})
}
