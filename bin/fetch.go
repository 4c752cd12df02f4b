package main

import (
	"context"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/velodeploy/logging"
	"www.velocidex.com/golang/velodeploy/services/installer"
	"www.velocidex.com/golang/velodeploy/services/release"
)

var (
	fetch_command = app.Command(
		"fetch", "Download the Velociraptor binary without deploying.")

	fetch_command_output = fetch_command.Flag(
		"output", "Where to write the binary "+
			"(default: the configured install directory).").
		Short('o').String()

	fetch_command_platform = fetch_command.Flag(
		"platform", "Override the detected platform.").String()

	fetch_command_force = fetch_command.Flag(
		"force", "Redownload even if the binary is present.").Bool()
)

func doFetch() {
	config_obj := load_config_or_default()
	logger := logging.GetLogger(config_obj, &logging.ToolComponent)

	ctx := context.Background()

	asset, err := release.NewGithubResolver(config_obj).Resolve(
		ctx, *fetch_command_platform)
	kingpin.FatalIfError(err, "Resolving release")

	logger.Info("Selected release <green>%v</> for %v (%v bytes)",
		asset.Version, asset.Platform, asset.SizeBytes)

	dest := *fetch_command_output
	if dest == "" {
		dest = config_obj.Deployment.BinaryPath()
	}

	artifact, err := installer.NewArtifactInstaller(config_obj).Install(
		ctx, asset, dest, *fetch_command_force)
	kingpin.FatalIfError(err, "Downloading binary")

	logger.Info("Wrote <green>%v</> (version %v, verified %v)",
		artifact.BinaryPath, artifact.Version, artifact.Verified)
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case fetch_command.FullCommand():
			doFetch()

		default:
			return false
		}
		return true
	})
}
