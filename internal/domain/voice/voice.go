package voice

import "fmt"

// Key identifies one member within one guild. It is the map key for
// reminder timer bookkeeping.
type Key struct {
	// GuildID is the guild the member belongs to.
	GuildID string
	// MemberID is the member's user ID within the guild.
	MemberID string
}

// String renders the key for logging.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.GuildID, k.MemberID)
}

// Status is a snapshot of one member's voice state. It is supplied
// fresh on every classification and never cached across checks.
type Status struct {
	// SelfMute is set when the member muted themselves.
	SelfMute bool
	// ServerMute is set when a moderator muted the member.
	ServerMute bool
	// SelfDeaf is set when the member deafened themselves.
	SelfDeaf bool
	// ServerDeaf is set when a moderator deafened the member.
	ServerDeaf bool
	// ChannelID is the voice channel the member is connected to,
	// empty when not in a channel.
	ChannelID string
}

// MemberState is the result of a live member lookup: who to address
// and their current voice status.
type MemberState struct {
	// DisplayName is the member's nickname, or username when no
	// nickname is set.
	DisplayName string
	// Status is the member's current voice status.
	Status Status
}

// IsMuted reports whether the status counts as muted. A nil status
// (member not in any voice channel) never counts. When countDeafAsMute
// is set, a deafened member counts as muted as well; the OR-combination
// mirrors the flags independently set by the platform.
func IsMuted(s *Status, countDeafAsMute bool) bool {
	if s == nil {
		return false
	}

	muted := s.SelfMute || s.ServerMute
	if countDeafAsMute {
		muted = muted || s.SelfDeaf || s.ServerDeaf
	}

	return muted
}
