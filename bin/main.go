/*
Velociraptor - Dig Deeper
Copyright (C) 2019-2025 Rapid7 Inc.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package main

import (
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/logging"
)

type CommandHandler func(command string) bool

var (
	app = kingpin.New("velodeploy",
		"Deploy and manage Velociraptor installations.")

	config_path = app.Flag("config", "The deployment configuration file.").
			Short('c').Envar("VELODEPLOY_CONFIG").String()

	verbose_flag = app.Flag(
		"verbose", "Enable verbose logging.").Short('v').
		Default("false").Bool()

	nocolor_flag = app.Flag(
		"nocolor", "Disable color output.").Bool()

	command_handlers []CommandHandler
)

// load_config_or_default returns the deployment config from
// --config, or the built in defaults when no file is given. Logging
// is initialized as a side effect so command implementations can just
// ask for a logger.
func load_config_or_default() *config.Config {
	config_obj := config.GetDefaultConfig()

	if *config_path != "" {
		loaded, err := config.LoadConfig(*config_path)
		kingpin.FatalIfError(err, "Unable to load config.")
		config_obj = loaded
	}

	err := logging.InitLogging(config_obj)
	kingpin.FatalIfError(err, "Logging")

	return config_obj
}

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate).DefaultEnvars()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *nocolor_flag {
		logging.NoColor = true
	}

	if !*verbose_flag {
		logging.SuppressLogging = true
	}

	for _, command_handler := range command_handlers {
		if command_handler(command) {
			break
		}
	}
}
