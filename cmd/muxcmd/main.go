package main

import "github.com/muxcmd/muxcmd/internal/cmd"

func main() {
	cmd.Execute()
}
