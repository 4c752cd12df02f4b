//go:build windows
// +build windows

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
package svcmanager

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/logging"
	"www.velocidex.com/golang/velodeploy/services"
	"www.velocidex.com/golang/velodeploy/utils"
)

// windowsController talks to the Windows Service Control Manager.
type windowsController struct {
	config_obj *config.Config
}

func NewController(config_obj *config.Config) (Controller, error) {
	return &windowsController{config_obj: config_obj}, nil
}

func (self *windowsController) connect() (*mgr.Mgr, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, utils.Wrapf(utils.PrivilegeError,
			"Unable to connect to the service manager: %v - "+
				"run as Administrator", err)
	}
	return m, nil
}

func (self *windowsController) Exists(
	ctx context.Context, name string) (bool, error) {
	m, err := self.connect()
	if err != nil {
		return false, err
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err == nil {
		s.Close()
		return true, nil
	}

	return false, nil
}

func (self *windowsController) Create(
	ctx context.Context, name, binary_path string, args []string) error {
	m, err := self.connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()

	s, err := m.CreateService(
		name, binary_path,
		mgr.Config{
			StartType:   mgr.StartAutomatic,
			DisplayName: name,
			Description: "Velociraptor deployment",
		},
		args...)
	if err != nil {
		return err
	}
	defer s.Close()

	// Try to create an event source but dont sweat it if it does
	// not work.
	err = eventlog.InstallAsEventCreate(
		name, eventlog.Error|eventlog.Warning|eventlog.Info)
	if err != nil {
		logger := logging.GetLogger(
			self.config_obj, &logging.ServiceComponent)
		logger.Info("SetupEventLogSource() failed: %s", err)
	}

	return nil
}

func (self *windowsController) Delete(
	ctx context.Context, name string) error {
	m, err := self.connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return fmt.Errorf("service %s is not installed", name)
	}
	defer s.Close()

	err = s.Delete()
	if err != nil {
		return err
	}

	err = eventlog.Remove(name)
	if err != nil {
		logger := logging.GetLogger(
			self.config_obj, &logging.ServiceComponent)
		logger.Info("RemoveEventLogSource() failed: %s", err)
	}

	return nil
}

func (self *windowsController) Start(
	ctx context.Context, name string) error {
	m, err := self.connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return fmt.Errorf("could not access service: %v", err)
	}
	defer s.Close()

	err = s.Start()
	if err != nil {
		return fmt.Errorf("could not start service: %v", err)
	}
	return nil
}

func (self *windowsController) Stop(
	ctx context.Context, name string) error {
	return self.controlService(name, svc.Stop, svc.Stopped)
}

func (self *windowsController) Query(
	ctx context.Context, name string) (
	services.ServiceStatus, int, error) {
	m, err := self.connect()
	if err != nil {
		return services.ServiceFailed, 0, err
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return services.ServiceNotInstalled, 0, nil
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return services.ServiceFailed, 0,
			fmt.Errorf("could not retrieve service status: %v", err)
	}

	switch status.State {
	case svc.Running, svc.StartPending, svc.ContinuePending:
		return services.ServiceRunning, int(status.ProcessId), nil
	case svc.Stopped, svc.StopPending:
		return services.ServiceStopped, 0, nil
	default:
		return services.ServiceFailed, 0, nil
	}
}

func (self *windowsController) controlService(
	name string, c svc.Cmd, to svc.State) error {
	m, err := self.connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return fmt.Errorf("could not access service: %v", err)
	}
	defer s.Close()

	status, err := s.Control(c)
	if err != nil {
		return fmt.Errorf("could not send control=%d: %v", c, err)
	}

	timeout := time.Now().Add(10 * time.Second)
	for status.State != to {
		if timeout.Before(time.Now()) {
			return fmt.Errorf(
				"timeout waiting for service to go to state=%d", to)
		}
		time.Sleep(300 * time.Millisecond)
		status, err = s.Query()
		if err != nil {
			return fmt.Errorf(
				"could not retrieve service status: %v", err)
		}
	}
	return nil
}
