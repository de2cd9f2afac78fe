package main

import "github.com/tank-turn-tactics/tankgame-sidecar/cmd"

func main() {
	cmd.Execute()
}
