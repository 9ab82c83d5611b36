// Package discord adapts the Discord gateway to the reminder core: it
// implements the platform ports (member lookup, destination
// resolution, message delivery) over a discordgo session and binds the
// gateway events (voice-state updates, the !muted command) to the
// reminder service.
package discord
