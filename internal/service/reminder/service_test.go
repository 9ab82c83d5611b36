package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ssaito/mute-reminder/internal/domain/voice"
)

var errTestSend = errors.New("test send error")

// fakePlatform is an in-memory implementation of the Lookup, Notifier
// and ChannelLister ports.
type fakePlatform struct {
	// mu guards all fields below.
	mu sync.Mutex
	// state is the member state returned by lookups; nil means the
	// guild or member is gone.
	state *voice.MemberState
	// lookupErr is returned by lookups when set.
	lookupErr error
	// noDest makes destination resolution fail.
	noDest bool
	// sendErr is returned by Send when set.
	sendErr error
	// sendTimes records when each Send call happened.
	sendTimes []time.Time
	// texts records the payload of each Send call.
	texts []string
	// members is returned by ChannelMembers.
	members []voice.MemberState
}

func (p *fakePlatform) MemberVoiceState(context.Context, string, string) (*voice.MemberState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lookupErr != nil {
		return nil, p.lookupErr
	}

	if p.state == nil {
		return nil, nil
	}

	state := *p.state

	return &state, nil
}

func (p *fakePlatform) ResolveDestination(context.Context, string, string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.noDest {
		return "", false
	}

	return "text-channel", true
}

func (p *fakePlatform) Send(_ context.Context, _ string, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sendTimes = append(p.sendTimes, time.Now())
	p.texts = append(p.texts, text)

	return p.sendErr
}

func (p *fakePlatform) ChannelMembers(context.Context, string, string) ([]voice.MemberState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.members, nil
}

// setState swaps the live member state under lock.
func (p *fakePlatform) setState(state *voice.MemberState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = state
}

// setNoDest toggles destination resolution.
func (p *fakePlatform) setNoDest(noDest bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.noDest = noDest
}

// sendCount returns the number of Send calls so far.
func (p *fakePlatform) sendCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.sendTimes)
}

// mutedState builds a member state with the given mute flags.
func mutedState(name string, selfMute, selfDeaf bool) *voice.MemberState {
	return &voice.MemberState{
		DisplayName: name,
		Status: voice.Status{
			SelfMute:  selfMute,
			SelfDeaf:  selfDeaf,
			ChannelID: "vc-1",
		},
	}
}

// newTestService builds a service with short timings suitable for tests.
func newTestService(p *fakePlatform, settings Settings) *Service {
	return NewService(settings, p, p, p)
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(2 * time.Millisecond)
	}

	require.Fail(t, "condition not met within timeout")
}

var testKey = voice.Key{GuildID: "g1", MemberID: "m1"}

// rising and falling feed a mute edge through the router.
func rising(ctx context.Context, s *Service, name string) {
	before := &voice.Status{ChannelID: "vc-1"}
	after := &voice.Status{SelfMute: true, ChannelID: "vc-1"}
	s.HandleVoiceUpdate(ctx, testKey, name, before, after)
}

func falling(ctx context.Context, s *Service, name string) {
	before := &voice.Status{SelfMute: true, ChannelID: "vc-1"}
	after := &voice.Status{ChannelID: "vc-1"}
	s.HandleVoiceUpdate(ctx, testKey, name, before, after)
}

// TestCancelBeforeDelaySendsNothing: a falling edge before the initial
// delay elapses yields zero notifications.
func TestCancelBeforeDelaySendsNothing(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{state: mutedState("alice", true, false)}
	s := newTestService(p, Settings{
		ReminderDelay:   60 * time.Millisecond,
		RepeatInterval:  60 * time.Millisecond,
		PollingSlice:    20 * time.Millisecond,
		CountDeafAsMute: true,
	})
	ctx := context.Background()

	rising(ctx, s, "alice")
	require.Equal(t, 1, s.ActiveTimers())

	falling(ctx, s, "alice")
	require.Zero(t, s.ActiveTimers())

	time.Sleep(150 * time.Millisecond)
	require.Zero(t, p.sendCount())
}

// TestFirstReminderAfterDelay: the first notification happens no
// earlier than the configured delay, repeats on the interval, and the
// payload names the member.
func TestFirstReminderAfterDelay(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{state: mutedState("alice", true, false)}
	s := newTestService(p, Settings{
		ReminderDelay:   50 * time.Millisecond,
		RepeatInterval:  60 * time.Millisecond,
		PollingSlice:    20 * time.Millisecond,
		CountDeafAsMute: true,
	})
	ctx := context.Background()

	started := time.Now()
	rising(ctx, s, "alice")

	waitFor(t, time.Second, func() bool { return p.sendCount() >= 1 })

	p.mu.Lock()
	first := p.sendTimes[0]
	text := p.texts[0]
	p.mu.Unlock()

	require.GreaterOrEqual(t, first.Sub(started), 50*time.Millisecond)
	require.Contains(t, text, "alice")

	// A second reminder arrives after roughly one repeat interval.
	waitFor(t, time.Second, func() bool { return p.sendCount() >= 2 })

	p.mu.Lock()
	second := p.sendTimes[1]
	p.mu.Unlock()

	require.GreaterOrEqual(t, second.Sub(first), 40*time.Millisecond)

	falling(ctx, s, "alice")
	require.Zero(t, s.ActiveTimers())
}

// TestUnmuteMidIntervalStopsTask: once the member unmutes, the sleeping
// task notices at a slice boundary and terminates without another send.
func TestUnmuteMidIntervalStopsTask(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{state: mutedState("bob", true, false)}
	s := newTestService(p, Settings{
		ReminderDelay:   30 * time.Millisecond,
		RepeatInterval:  500 * time.Millisecond,
		PollingSlice:    20 * time.Millisecond,
		CountDeafAsMute: true,
	})
	ctx := context.Background()

	rising(ctx, s, "bob")
	waitFor(t, time.Second, func() bool { return p.sendCount() == 1 })

	// Unmute without a gateway event: only the polling slice can see it.
	p.setState(mutedState("bob", false, false))

	waitFor(t, time.Second, func() bool { return s.ActiveTimers() == 0 })
	require.Equal(t, 1, p.sendCount())
}

// TestMemberVanishedStopsTask: a lookup miss terminates the task
// silently and removes the registry entry.
func TestMemberVanishedStopsTask(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{state: mutedState("carol", true, false)}
	s := newTestService(p, Settings{
		ReminderDelay:   40 * time.Millisecond,
		RepeatInterval:  60 * time.Millisecond,
		PollingSlice:    20 * time.Millisecond,
		CountDeafAsMute: true,
	})
	ctx := context.Background()

	rising(ctx, s, "carol")
	p.setState(nil)

	waitFor(t, time.Second, func() bool { return s.ActiveTimers() == 0 })
	require.Zero(t, p.sendCount())
}

// TestSendFailureKeepsLooping: delivery failures are logged and the
// loop keeps going, trying again on the next interval.
func TestSendFailureKeepsLooping(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{
		state:   mutedState("dave", true, false),
		sendErr: errTestSend,
	}
	s := newTestService(p, Settings{
		ReminderDelay:   30 * time.Millisecond,
		RepeatInterval:  40 * time.Millisecond,
		PollingSlice:    20 * time.Millisecond,
		CountDeafAsMute: true,
	})
	ctx := context.Background()

	rising(ctx, s, "dave")

	waitFor(t, time.Second, func() bool { return p.sendCount() >= 2 })
	require.Equal(t, 1, s.ActiveTimers())

	falling(ctx, s, "dave")
}

// TestNoDestinationSkipsSend: an unresolvable destination skips the
// send but does not terminate the task; a later interval delivers.
func TestNoDestinationSkipsSend(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{
		state:  mutedState("erin", true, false),
		noDest: true,
	}
	s := newTestService(p, Settings{
		ReminderDelay:   30 * time.Millisecond,
		RepeatInterval:  40 * time.Millisecond,
		PollingSlice:    20 * time.Millisecond,
		CountDeafAsMute: true,
	})
	ctx := context.Background()

	rising(ctx, s, "erin")

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, p.sendCount())
	require.Equal(t, 1, s.ActiveTimers())

	p.setNoDest(false)
	waitFor(t, time.Second, func() bool { return p.sendCount() >= 1 })

	falling(ctx, s, "erin")
}

// TestAtMostOneTimerPerMember: arbitrary event interleavings never
// leave more than one live task for a member, and repeated rising
// edges replace rather than stack.
func TestAtMostOneTimerPerMember(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{state: mutedState("frank", true, false)}
	s := newTestService(p, Settings{
		ReminderDelay:   200 * time.Millisecond,
		RepeatInterval:  200 * time.Millisecond,
		PollingSlice:    50 * time.Millisecond,
		CountDeafAsMute: true,
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rising(ctx, s, "frank")
		require.Equal(t, 1, s.ActiveTimers())

		// A second rising edge without a falling edge in between
		// (missed unmute event) replaces the task.
		rising(ctx, s, "frank")
		require.Equal(t, 1, s.ActiveTimers())

		falling(ctx, s, "frank")
		require.Zero(t, s.ActiveTimers())
	}

	require.Zero(t, p.sendCount())
}

// TestDeafenKeepsConditionTrue walks the scenario where a muted member
// deafens, unmutes while still deafened (no falling edge because
// deafness counts as mute), and finally undeafens, which cancels the
// timer before any reminder fired.
func TestDeafenKeepsConditionTrue(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{state: mutedState("grace", true, false)}
	s := newTestService(p, Settings{
		ReminderDelay:   150 * time.Millisecond,
		RepeatInterval:  150 * time.Millisecond,
		PollingSlice:    30 * time.Millisecond,
		CountDeafAsMute: true,
	})
	ctx := context.Background()

	// Self-mute: rising edge.
	rising(ctx, s, "grace")
	require.Equal(t, 1, s.ActiveTimers())

	// Deafen while muted: no edge.
	s.HandleVoiceUpdate(ctx, testKey, "grace",
		&voice.Status{SelfMute: true, ChannelID: "vc-1"},
		&voice.Status{SelfMute: true, SelfDeaf: true, ChannelID: "vc-1"})
	require.Equal(t, 1, s.ActiveTimers())

	// Unmute while still deafened: condition stays true, no edge.
	p.setState(mutedState("grace", false, true))
	s.HandleVoiceUpdate(ctx, testKey, "grace",
		&voice.Status{SelfMute: true, SelfDeaf: true, ChannelID: "vc-1"},
		&voice.Status{SelfDeaf: true, ChannelID: "vc-1"})
	require.Equal(t, 1, s.ActiveTimers())

	// Undeafen: falling edge, timer cancelled before the delay elapsed.
	s.HandleVoiceUpdate(ctx, testKey, "grace",
		&voice.Status{SelfDeaf: true, ChannelID: "vc-1"},
		&voice.Status{ChannelID: "vc-1"})
	require.Zero(t, s.ActiveTimers())

	time.Sleep(250 * time.Millisecond)
	require.Zero(t, p.sendCount())
}

// TestNoEdgeNoTimer: irrelevant status changes never start a timer.
func TestNoEdgeNoTimer(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{}
	s := newTestService(p, Settings{
		ReminderDelay:  50 * time.Millisecond,
		RepeatInterval: 50 * time.Millisecond,
		PollingSlice:   20 * time.Millisecond,
	})
	ctx := context.Background()

	// Channel move while unmuted.
	s.HandleVoiceUpdate(ctx, testKey, "henry",
		&voice.Status{ChannelID: "vc-1"},
		&voice.Status{ChannelID: "vc-2"})
	require.Zero(t, s.ActiveTimers())

	// Join with nil before.
	s.HandleVoiceUpdate(ctx, testKey, "henry", nil, &voice.Status{ChannelID: "vc-1"})
	require.Zero(t, s.ActiveTimers())
}

// TestMutedMembers filters live channel members through the classifier.
func TestMutedMembers(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{
		members: []voice.MemberState{
			{DisplayName: "alice", Status: voice.Status{SelfMute: true}},
			{DisplayName: "bob", Status: voice.Status{}},
			{DisplayName: "carol", Status: voice.Status{SelfDeaf: true}},
		},
	}

	s := newTestService(p, Settings{CountDeafAsMute: true})
	names, err := s.MutedMembers(context.Background(), "g1", "vc-1")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "carol"}, names)

	// Deafness alone does not count when the option is off.
	s = newTestService(p, Settings{CountDeafAsMute: false})
	names, err = s.MutedMembers(context.Background(), "g1", "vc-1")
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, names)
}

// TestShutdownDrainsTasks cancels every live task and waits them out.
func TestShutdownDrainsTasks(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{state: mutedState("ivan", true, false)}
	s := newTestService(p, Settings{
		ReminderDelay:   time.Minute,
		RepeatInterval:  time.Minute,
		PollingSlice:    time.Second,
		CountDeafAsMute: true,
	})
	ctx := context.Background()

	rising(ctx, s, "ivan")

	other := voice.Key{GuildID: "g2", MemberID: "m2"}
	s.HandleVoiceUpdate(ctx, other, "judy",
		&voice.Status{ChannelID: "vc-9"},
		&voice.Status{ServerMute: true, ChannelID: "vc-9"})
	require.Equal(t, 2, s.ActiveTimers())

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	s.Shutdown(shutdownCtx)
	require.Zero(t, s.ActiveTimers())
	require.Zero(t, p.sendCount())
}
