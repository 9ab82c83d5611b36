package main

import "github.com/ssaito/mute-reminder/cmd/mute-reminder/cmd"

func main() {
	cmd.Execute()
}
