package reminder

import (
	"context"

	"github.com/ssaito/mute-reminder/internal/domain/voice"
)

// Lookup resolves live member state from the chat platform.
type Lookup interface {
	// MemberVoiceState returns the member's display name and current
	// voice status. It returns (nil, nil) when the guild or the member
	// no longer exists; an error only for transport failures.
	MemberVoiceState(ctx context.Context, guildID, memberID string) (*voice.MemberState, error)
}

// Notifier resolves destinations and delivers reminder messages.
type Notifier interface {
	// ResolveDestination maps the member's current voice channel to a
	// messageable channel ID, falling back to a configured text
	// channel. The second result is false when nowhere can be notified.
	ResolveDestination(ctx context.Context, guildID, channelID string) (string, bool)

	// Send delivers one message to the destination channel.
	Send(ctx context.Context, destinationID, text string) error
}

// ChannelLister enumerates the members currently connected to a voice
// channel. Used by the read-only muted-members query.
type ChannelLister interface {
	ChannelMembers(ctx context.Context, guildID, channelID string) ([]voice.MemberState, error)
}
