package main

import "github.com/wormhole-demo/connect/cmd"

func main() {
	cmd.Execute()
}
