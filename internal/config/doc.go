// Package config defines bot settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type holds the Discord token, reminder timing parameters
// and the optional fallback text channel.
package config
