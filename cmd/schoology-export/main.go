package main

import "schoology-export/cmd/schoology-export/commands"

func main() {
	commands.Execute()
}
