package main

import (
	"github.com/denosaur/dinosaurs/internal/command"
)

func main() {
	command.Main(
		"dinosaurs", "dinosaurs CRUD API and static front end",
		command.ServeCommand(),
		command.DemoCommand(),
		command.PublishCommand(),
	)
}
