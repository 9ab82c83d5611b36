package discord

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/ssaito/mute-reminder/internal/domain/voice"
	"github.com/ssaito/mute-reminder/internal/logger"
	"github.com/ssaito/mute-reminder/internal/service/reminder"
)

// mutedCommand lists the muted members of the caller's voice channel.
const mutedCommand = "!muted"

// Register attaches the gateway handlers to the session. The provided
// context flows into the reminder service, so every task it spawns is
// torn down when the context is cancelled.
func Register(ctx context.Context, session *discordgo.Session, svc *reminder.Service, adapter *Adapter) {
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		onReady(ctx, r)
	})
	session.AddHandler(func(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) {
		onVoiceStateUpdate(ctx, svc, adapter, e)
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		onMessageCreate(ctx, svc, s, m)
	})
}

// onReady logs the session identity once the gateway handshake is done.
func onReady(ctx context.Context, r *discordgo.Ready) {
	username := ""
	if r.User != nil {
		username = r.User.Username
	}

	logger.InfoKV(ctx, "Logged in, monitoring voice states", "user", username, "guilds", len(r.Guilds))
}

// onVoiceStateUpdate feeds one status transition into the edge router.
func onVoiceStateUpdate(ctx context.Context, svc *reminder.Service, adapter *Adapter, e *discordgo.VoiceStateUpdate) {
	if e.VoiceState == nil {
		return
	}

	key := voice.Key{
		GuildID:  e.GuildID,
		MemberID: e.UserID,
	}

	var before *voice.Status

	if e.BeforeUpdate != nil {
		b := statusFromVoiceState(e.BeforeUpdate)
		before = &b
	}

	after := statusFromVoiceState(e.VoiceState)

	svc.HandleVoiceUpdate(ctx, key, adapter.displayName(e.GuildID, e.UserID), before, &after)
}

// onMessageCreate answers the !muted inspection command with the muted
// members of the caller's current voice channel.
func onMessageCreate(ctx context.Context, svc *reminder.Service, s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	if strings.TrimSpace(m.Content) != mutedCommand {
		return
	}

	vs, err := s.State.VoiceState(m.GuildID, m.Author.ID)
	if err != nil || vs.ChannelID == "" {
		reply(ctx, s, m, "Join a voice channel first.")

		return
	}

	names, err := svc.MutedMembers(ctx, m.GuildID, vs.ChannelID)
	if err != nil {
		logger.ErrorKV(ctx, "Muted members query failed", "guild_id", m.GuildID, "error", err)

		return
	}

	if len(names) == 0 {
		reply(ctx, s, m, "No one is muted in this voice channel.")

		return
	}

	reply(ctx, s, m, "Muted now: "+strings.Join(names, ", "))
}

// reply sends a response referencing the command message. Failures are
// logged, never surfaced to the gateway loop.
func reply(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, text, m.Reference(), discordgo.WithContext(ctx)); err != nil {
		logger.ErrorKV(ctx, "Reply failed", "channel_id", m.ChannelID, "error", err)
	}
}
