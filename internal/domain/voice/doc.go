// Package voice contains core domain types for voice-state monitoring.
//
// It defines Key (guild + member identity), Status (a voice-state
// snapshot) and the IsMuted classifier that decides whether a status
// counts as muted.
package voice
