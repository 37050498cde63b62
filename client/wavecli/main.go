package main

import "wavespeed2api/client/wavecli/cmd"

func main() {
	cmd.Execute()
}
