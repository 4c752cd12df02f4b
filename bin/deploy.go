package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/logging"
	"www.velocidex.com/golang/velodeploy/services/firewall"
	"www.velocidex.com/golang/velodeploy/services/installer"
	"www.velocidex.com/golang/velodeploy/services/orchestrator"
	"www.velocidex.com/golang/velodeploy/services/release"
	"www.velocidex.com/golang/velodeploy/services/svcmanager"
	"www.velocidex.com/golang/velodeploy/tools/survey"
)

var (
	deploy_command = app.Command(
		"deploy", "Deploy Velociraptor on this host.")

	deploy_command_interactive = deploy_command.Flag(
		"interactive", "Ask questions interactively.").
		Short('i').Bool()

	deploy_command_force = deploy_command.Flag(
		"force", "Reinstall the binary even if one is present.").Bool()

	deploy_command_platform = deploy_command.Flag(
		"platform", "Override the detected platform "+
			"(e.g. windows-amd64).").String()

	deploy_command_retries = deploy_command.Flag(
		"retries", "How often to retry a failed deployment.").
		Default("5").Int()

	deploy_command_type = deploy_command.Flag(
		"type", "Deployment type (Standalone, Server or Client).").
		String()

	deploy_command_install_dir = deploy_command.Flag(
		"install_dir", "Directory to install the binary into.").String()

	deploy_command_data_dir = deploy_command.Flag(
		"data_dir", "Directory for the datastore.").String()

	deploy_command_bind_port = deploy_command.Flag(
		"bind_port", "Frontend port.").Int()

	deploy_command_gui_port = deploy_command.Flag(
		"gui_port", "GUI port.").Int()

	deploy_command_username = deploy_command.Flag(
		"username", "Initial GUI admin user.").String()

	deploy_command_password = deploy_command.Flag(
		"password", "Password for the initial GUI admin user.").
		Envar("VELODEPLOY_PASSWORD").String()

	deploy_command_dns_name = deploy_command.Flag(
		"public_dns_name", "Public DNS name for Lets Encrypt.").String()
)

func getDeploymentParams(
	config_obj *config.Config) *config.DeploymentParameters {
	if *deploy_command_interactive {
		params, err := survey.GetInteractiveParams()
		kingpin.FatalIfError(err, "deploy")
		return params
	}

	params := config_obj.Deployment

	// Command line flags override the config file.
	if *deploy_command_type != "" {
		params.DeploymentType = *deploy_command_type
	}
	if *deploy_command_install_dir != "" {
		params.InstallDirectory = *deploy_command_install_dir
	}
	if *deploy_command_data_dir != "" {
		params.DataDirectory = *deploy_command_data_dir
	}
	if *deploy_command_bind_port != 0 {
		params.BindPort = uint32(*deploy_command_bind_port)
	}
	if *deploy_command_gui_port != 0 {
		params.GUIBindPort = uint32(*deploy_command_gui_port)
	}
	if *deploy_command_username != "" {
		params.AdminUsername = *deploy_command_username
	}
	if *deploy_command_password != "" {
		params.AdminPassword = *deploy_command_password
	}
	if *deploy_command_dns_name != "" {
		params.PublicDNSName = *deploy_command_dns_name
	}

	return params
}

func doDeploy() {
	config_obj := load_config_or_default()
	params := getDeploymentParams(config_obj)
	config_obj.Deployment = params

	err := params.Validate()
	kingpin.FatalIfError(err, "Invalid deployment parameters")

	controller, err := svcmanager.NewController(config_obj)
	kingpin.FatalIfError(err, "Service manager")

	driver := orchestrator.NewDriver(
		config_obj,
		release.NewGithubResolver(config_obj),
		installer.NewArtifactInstaller(config_obj),
		svcmanager.NewManager(config_obj, controller, params),
		firewall.NewManager(config_obj))
	driver.Force = *deploy_command_force
	driver.PlatformHint = *deploy_command_platform

	ctx := context.Background()
	logger := logging.GetLogger(config_obj, &logging.ToolComponent)

	// Transient failures (network drops, a service that was slow to
	// release its binary) usually clear up on a retry. Each pass is
	// idempotent so completed steps are cheap to repeat.
	attempts := retryAttempts(*deploy_command_retries)

	var result *orchestrator.DeploymentResult
	for i := 0; i < attempts; i++ {
		if i > 0 {
			logger.Info("Deployment failed, retrying in 10 seconds "+
				"(attempt %v/%v)", i+1, attempts)
			time.Sleep(10 * time.Second)
		}

		result = driver.Deploy(ctx, params)
		if result.Success {
			break
		}
	}

	renderResult(result)

	if !result.Success {
		os.Exit(1)
	}
}

// The deploy pipeline always runs at least once, whatever --retries
// says.
func retryAttempts(requested int) int {
	if requested < 1 {
		return 1
	}
	return requested
}

func renderResult(result *orchestrator.DeploymentResult) {
	if result == nil {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Step", "Status", "Message"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for _, step := range result.Steps {
		table.Append([]string{
			step.Name, string(step.Status), step.Message})
	}
	table.Render()

	fmt.Printf("\nDeployment %v: ", result.DeploymentId)
	if result.Success {
		fmt.Printf("SUCCESS\n")
	} else {
		fmt.Printf("FAILED (%v)\n", result.Error)
	}

	if result.ServiceRecord != nil {
		record := result.ServiceRecord
		fmt.Printf("Service %v is %v", record.ServiceName, record.Status)
		if record.Pid != 0 {
			fmt.Printf(" (pid %v)", record.Pid)
		}
		fmt.Printf("\n")
	}
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case deploy_command.FullCommand():
			doDeploy()

		default:
			return false
		}
		return true
	})
}
