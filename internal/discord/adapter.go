package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/ssaito/mute-reminder/internal/domain/voice"
)

// GatewayIntents are the gateway subscriptions the bot needs: guilds
// and members for lookups, voice states for edge detection, messages
// and message content for the !muted command.
const GatewayIntents = discordgo.IntentGuilds |
	discordgo.IntentGuildMembers |
	discordgo.IntentGuildVoiceStates |
	discordgo.IntentGuildMessages |
	discordgo.IntentMessageContent

// Adapter implements the reminder ports over a discordgo session,
// reading live state from the session cache and sending messages over
// REST.
type Adapter struct {
	// session is the shared gateway session.
	session *discordgo.Session
	// fallbackChannelID is the text channel notified when the voice
	// channel cannot be resolved. Empty disables the fallback.
	fallbackChannelID string
}

// NewAdapter wraps the session for the reminder service.
func NewAdapter(session *discordgo.Session, fallbackChannelID string) *Adapter {
	return &Adapter{
		session:           session,
		fallbackChannelID: fallbackChannelID,
	}
}

// MemberVoiceState returns the member's display name and current voice
// status. A guild unknown to the session, a member without a cached
// voice state, or a member who left all map to (nil, nil): the
// reminder task treats every one of them as "stop watching".
func (a *Adapter) MemberVoiceState(_ context.Context, guildID, memberID string) (*voice.MemberState, error) {
	if _, err := a.session.State.Guild(guildID); err != nil {
		return nil, nil
	}

	vs, err := a.session.State.VoiceState(guildID, memberID)
	if err != nil || vs == nil {
		return nil, nil
	}

	return &voice.MemberState{
		DisplayName: a.displayName(guildID, memberID),
		Status:      statusFromVoiceState(vs),
	}, nil
}

// ResolveDestination picks the channel to notify. The member's current
// voice channel is messageable directly (text-in-voice); without one,
// the configured fallback text channel is used if it belongs to the
// guild.
func (a *Adapter) ResolveDestination(_ context.Context, guildID, channelID string) (string, bool) {
	if channelID != "" {
		return channelID, true
	}

	if a.fallbackChannelID == "" {
		return "", false
	}

	ch, err := a.session.State.Channel(a.fallbackChannelID)
	if err != nil || ch.GuildID != guildID || ch.Type != discordgo.ChannelTypeGuildText {
		return "", false
	}

	return a.fallbackChannelID, true
}

// Send delivers one message to the destination channel.
func (a *Adapter) Send(ctx context.Context, destinationID, text string) error {
	if _, err := a.session.ChannelMessageSend(destinationID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send message to %s: %w", destinationID, err)
	}

	return nil
}

// ChannelMembers returns the live state of every member connected to
// the given voice channel.
func (a *Adapter) ChannelMembers(_ context.Context, guildID, channelID string) ([]voice.MemberState, error) {
	guild, err := a.session.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s: %w", guildID, err)
	}

	var members []voice.MemberState

	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}

		members = append(members, voice.MemberState{
			DisplayName: a.displayName(guildID, vs.UserID),
			Status:      statusFromVoiceState(vs),
		})
	}

	return members, nil
}

// displayName resolves the member's nickname, falling back to their
// global name, username, and finally the raw ID. The state cache is
// tried first, REST second.
func (a *Adapter) displayName(guildID, memberID string) string {
	member, err := a.session.State.Member(guildID, memberID)
	if err != nil {
		member, err = a.session.GuildMember(guildID, memberID)
		if err != nil {
			return memberID
		}
	}

	if member.Nick != "" {
		return member.Nick
	}

	if member.User != nil {
		if member.User.GlobalName != "" {
			return member.User.GlobalName
		}

		return member.User.Username
	}

	return memberID
}

// statusFromVoiceState converts a gateway voice state into the domain
// snapshot. Mute and deafen flags are carried even when the member has
// no channel: leaving voice does not clear them on the platform side.
func statusFromVoiceState(vs *discordgo.VoiceState) voice.Status {
	return voice.Status{
		SelfMute:   vs.SelfMute,
		ServerMute: vs.Mute,
		SelfDeaf:   vs.SelfDeaf,
		ServerDeaf: vs.Deaf,
		ChannelID:  vs.ChannelID,
	}
}
