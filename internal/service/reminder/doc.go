// Package reminder implements the mute-reminder core: a registry of
// per-member timer tasks, the task loop that notifies long-muted
// members, and the edge detection that starts or cancels tasks on
// voice-state updates.
//
// The platform (gateway session, channel messaging) is abstracted
// behind the Lookup, Notifier and ChannelLister ports so the core can
// be tested without a connection.
package reminder
