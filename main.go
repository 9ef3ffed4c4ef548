package main

import "github.com/encodeous/meshwatch/cmd"

func main() {
	cmd.Execute()
}
