package main

import "canvas-image-relay/cmd"

func main() {
	cmd.Execute()
}
