package main

import (
	"context"
	"fmt"
	"time"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/velodeploy/logging"
	"www.velocidex.com/golang/velodeploy/services/svcmanager"
)

var (
	service_command = app.Command(
		"service", "Manage the deployed Velociraptor service.")

	service_install_command = service_command.Command(
		"install", "Register and start the service.")

	service_install_command_retries = service_install_command.Flag(
		"retries", "How often to retry the registration.").
		Default("5").Int()

	service_remove_command = service_command.Command(
		"remove", "Stop and deregister the service.")

	service_start_command = service_command.Command(
		"start", "Start the service.")

	service_stop_command = service_command.Command(
		"stop", "Stop the service.")

	service_restart_command = service_command.Command(
		"restart", "Restart the service.")

	service_status_command = service_command.Command(
		"status", "Show the current service state.")
)

func getServiceManager() *svcmanager.Manager {
	config_obj := load_config_or_default()

	controller, err := svcmanager.NewController(config_obj)
	kingpin.FatalIfError(err, "Service manager")

	return svcmanager.NewManager(
		config_obj, controller, config_obj.Deployment)
}

func doServiceInstall() {
	manager := getServiceManager()
	config_obj := manager.Config()
	logger := logging.GetLogger(config_obj, &logging.ServiceComponent)

	params := config_obj.Deployment

	ctx := context.Background()

	// On a freshly booted host the SCM may still be settling, so
	// keep trying for a while.
	var err error
	for i := 0; i < *service_install_command_retries; i++ {
		if i > 0 {
			logger.Info("Retrying service registration in 10 seconds "+
				"(attempt %v/%v)",
				i+1, *service_install_command_retries)
			time.Sleep(10 * time.Second)
		}

		err = manager.Register(ctx, params.BinaryPath(),
			params.ConfigPath(), params.LaunchArgs())
		if err == nil {
			break
		}
	}
	kingpin.FatalIfError(err, "Unable to register service")

	result, err := manager.Start(ctx)
	kingpin.FatalIfError(err, "Unable to start service")

	fmt.Println(result.Message)
}

func doServiceRemove() {
	err := getServiceManager().Remove(context.Background())
	kingpin.FatalIfError(err, "Unable to remove service")
}

func doServiceStart() {
	result, err := getServiceManager().Start(context.Background())
	kingpin.FatalIfError(err, "Unable to start service")
	fmt.Println(result.Message)
}

func doServiceStop() {
	err := getServiceManager().Stop(context.Background())
	kingpin.FatalIfError(err, "Unable to stop service")
}

func doServiceRestart() {
	result, err := getServiceManager().Restart(context.Background())
	kingpin.FatalIfError(err, "Unable to restart service")
	fmt.Println(result.Message)
}

func doServiceStatus() {
	record, err := getServiceManager().GetStatus(context.Background())
	kingpin.FatalIfError(err, "Unable to query service")

	fmt.Printf("%v: %v", record.ServiceName, record.Status)
	if record.Pid != 0 {
		fmt.Printf(" (pid %v)", record.Pid)
	}
	fmt.Printf("\n")
}

func init() {
	command_handlers = append(command_handlers, func(command string) bool {
		switch command {
		case service_install_command.FullCommand():
			doServiceInstall()

		case service_remove_command.FullCommand():
			doServiceRemove()

		case service_start_command.FullCommand():
			doServiceStart()

		case service_stop_command.FullCommand():
			doServiceStop()

		case service_restart_command.FullCommand():
			doServiceRestart()

		case service_status_command.FullCommand():
			doServiceStatus()

		default:
			return false
		}
		return true
	})
}
