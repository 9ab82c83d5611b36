// Package bot wires configuration, the gateway session and the
// reminder service into the mute-reminder process.
package bot
