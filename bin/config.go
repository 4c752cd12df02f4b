package main

import (
	"fmt"
	"os"

	"github.com/Velocidex/yaml/v2"
	"github.com/olekukonko/tablewriter"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/velodeploy/config"
)

var (
	config_command = app.Command(
		"config", "Manipulate the deployment configuration.")

	config_show_command = config_command.Command(
		"show", "Print the effective deployment parameters.")

	config_generate_command = config_command.Command(
		"generate", "Generate the Velociraptor config for the "+
			"current deployment parameters.")

	config_generate_command_write = config_generate_command.Flag(
		"write", "Write the config into the data directory instead "+
			"of printing it.").Bool()
)

func doShowConfig() {
	config_obj := load_config_or_default()

	res, err := yaml.Marshal(config_obj)
	kingpin.FatalIfError(err, "Unable to encode config.")
	fmt.Printf("%v", string(res))
}

// doGenerateConfig is a dry run by default - the config is compiled,
// validated and printed but nothing is written anywhere.
func doGenerateConfig() {
	config_obj := load_config_or_default()

	generated, err := config.Generate(config_obj.Deployment)
	kingpin.FatalIfError(err, "Unable to generate config.")

	if *config_generate_command_write {
		err = generated.Write()
		kingpin.FatalIfError(err, "Unable to write config.")

		table := tablewriter.NewWriter(os.Stdout)
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)

		summary := generated.Summary()
		for _, key := range summary.Keys() {
			value, _ := summary.Get(key)
			table.Append([]string{key, fmt.Sprintf("%v", value)})
		}
		table.Render()
		return
	}

	fmt.Printf("%v", generated.RawContent)
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case config_show_command.FullCommand():
			doShowConfig()

		case config_generate_command.FullCommand():
			doGenerateConfig()

		default:
			return false
		}
		return true
	})
}
