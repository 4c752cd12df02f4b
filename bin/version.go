package main

import (
	"fmt"
	"runtime"

	"www.velocidex.com/golang/velodeploy/constants"
)

var (
	version_command = app.Command(
		"version", "Report the program version.")
)

func doVersion() {
	fmt.Printf("velodeploy %v (%v %v/%v)\n",
		constants.VERSION, runtime.Version(),
		runtime.GOOS, runtime.GOARCH)
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case version_command.FullCommand():
			doVersion()

		default:
			return false
		}
		return true
	})
}
