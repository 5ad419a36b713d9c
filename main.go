package main

import "kickwatch/cmd"

func main() {
	cmd.Execute()
}
