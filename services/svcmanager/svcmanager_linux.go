//go:build linux
// +build linux

package svcmanager

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/services"
	"www.velocidex.com/golang/velodeploy/utils"
)

const service_definition = `
[Unit]
Description=Velociraptor deployment
After=syslog.target network.target

[Service]
Type=simple
Restart=always
RestartSec=120
LimitNOFILE=20000
Environment=LANG=en_US.UTF-8
ExecStart=%s %s

[Install]
WantedBy=multi-user.target
`

// systemdController registers the deployment as a systemd unit.
type systemdController struct {
	config_obj *config.Config

	// Where unit files are written - a var so tests can redirect
	// it.
	UnitDirectory string
}

func NewController(config_obj *config.Config) (Controller, error) {
	return &systemdController{
		config_obj:    config_obj,
		UnitDirectory: "/etc/systemd/system",
	}, nil
}

func (self *systemdController) unitPath(name string) string {
	return fmt.Sprintf("%s/%s.service",
		self.UnitDirectory, strings.ToLower(name))
}

func (self *systemdController) unitName(name string) string {
	return strings.ToLower(name) + ".service"
}

func (self *systemdController) systemctl(
	ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(
		ctx, "systemctl", args...).CombinedOutput()
	if err != nil {
		if os.Geteuid() != 0 {
			return "", utils.Wrapf(utils.PrivilegeError,
				"systemctl %v failed: %v (%s) - run as root",
				strings.Join(args, " "), err,
				strings.TrimSpace(string(out)))
		}
		return "", fmt.Errorf("systemctl %v failed: %v (%s)",
			strings.Join(args, " "), err,
			strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func (self *systemdController) Exists(
	ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(self.unitPath(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (self *systemdController) Create(
	ctx context.Context, name, binary_path string, args []string) error {

	unit := fmt.Sprintf(service_definition,
		binary_path, strings.Join(args, " "))

	err := ioutil.WriteFile(self.unitPath(name), []byte(unit), 0644)
	if err != nil {
		if os.IsPermission(err) {
			return utils.Wrapf(utils.PrivilegeError,
				"Unable to write %v: %v - run as root",
				self.unitPath(name), err)
		}
		return utils.Wrapf(utils.IOError,
			"Unable to write %v: %v", self.unitPath(name), err)
	}

	_, err = self.systemctl(ctx, "daemon-reload")
	if err != nil {
		return err
	}

	_, err = self.systemctl(ctx, "enable", self.unitName(name))
	return err
}

func (self *systemdController) Delete(
	ctx context.Context, name string) error {
	_, _ = self.systemctl(ctx, "disable", self.unitName(name))

	err := os.Remove(self.unitPath(name))
	if err != nil && !os.IsNotExist(err) {
		return utils.Wrapf(utils.IOError,
			"Unable to remove %v: %v", self.unitPath(name), err)
	}

	_, err = self.systemctl(ctx, "daemon-reload")
	return err
}

func (self *systemdController) Start(
	ctx context.Context, name string) error {
	_, err := self.systemctl(ctx, "start", self.unitName(name))
	return err
}

func (self *systemdController) Stop(
	ctx context.Context, name string) error {
	_, err := self.systemctl(ctx, "stop", self.unitName(name))
	return err
}

func (self *systemdController) Query(
	ctx context.Context, name string) (
	services.ServiceStatus, int, error) {

	// is-active exits non zero for inactive units so we only look
	// at the output.
	out, _ := exec.CommandContext(ctx, "systemctl",
		"is-active", self.unitName(name)).Output()

	switch strings.TrimSpace(string(out)) {
	case "active", "activating":
		pid := 0
		pid_out, err := exec.CommandContext(ctx, "systemctl",
			"show", "-p", "MainPID", "--value",
			self.unitName(name)).Output()
		if err == nil {
			pid, _ = strconv.Atoi(strings.TrimSpace(string(pid_out)))
		}
		return services.ServiceRunning, pid, nil

	case "inactive", "deactivating":
		return services.ServiceStopped, 0, nil

	case "failed":
		return services.ServiceFailed, 0, nil

	default:
		return services.ServiceNotInstalled, 0, nil
	}
}
