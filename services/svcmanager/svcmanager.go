package svcmanager

import (
	"context"
	"fmt"
	"net"
	"time"

	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/logging"
	"www.velocidex.com/golang/velodeploy/services"
	"www.velocidex.com/golang/velodeploy/utils"
)

// Controller is the OS level service mechanism (Windows SCM,
// systemd). The Manager adds the cross platform semantics on top:
// re-registration, idempotent stop/remove and the readiness poll.
type Controller interface {
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, name, binary_path string,
		args []string) error
	Delete(ctx context.Context, name string) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error

	// Query returns the current status and pid straight from the
	// OS.
	Query(ctx context.Context, name string) (
		services.ServiceStatus, int, error)
}

type Manager struct {
	config_obj *config.Config
	controller Controller

	ServiceName string

	binary_path string
	config_path string
	launch_args []string

	// Readiness poll tunables.
	ProbeAddress string
	ProbePort    uint32
	PollAttempts int
	PollInterval time.Duration

	Clock utils.Clock
	Dial  func(network, address string,
		timeout time.Duration) (net.Conn, error)
}

func NewManager(
	config_obj *config.Config,
	controller Controller,
	params *config.DeploymentParameters) *Manager {

	service_name := params.ServiceName
	if service_name == "" {
		service_name = "Velociraptor"
	}

	return &Manager{
		config_obj:   config_obj,
		controller:   controller,
		ServiceName:  service_name,
		binary_path:  params.BinaryPath(),
		config_path:  params.ConfigPath(),
		launch_args:  params.LaunchArgs(),
		ProbeAddress: params.ProbeAddress(),
		ProbePort:    params.ProbePort(),
		PollAttempts: 15,
		PollInterval: time.Second,
		Clock:        utils.RealClock{},
		Dial:         net.DialTimeout,
	}
}

func (self *Manager) Config() *config.Config {
	return self.config_obj
}

func (self *Manager) Register(
	ctx context.Context,
	binary_path, config_path string, launch_args []string) error {

	logger := logging.GetLogger(self.config_obj, &logging.ServiceComponent)

	self.binary_path = binary_path
	self.config_path = config_path
	self.launch_args = launch_args

	// A service already exists - we need to delete it and
	// recreate it to make sure it is set up correctly.
	pres, err := self.controller.Exists(ctx, self.ServiceName)
	if err != nil {
		return err
	}
	if pres {
		err = self.controller.Stop(ctx, self.ServiceName)
		if err != nil {
			logger.Info("Error stopping service %v. "+
				"Will attempt to continue anyway.", err)
		} else {
			logger.Info("Stopped service %s", self.ServiceName)
		}

		err = self.controller.Delete(ctx, self.ServiceName)
		if err != nil {
			return utils.Wrapf(utils.IOError,
				"Unable to remove old service registration: %v", err)
		}
	}

	err = self.controller.Create(
		ctx, self.ServiceName, binary_path, launch_args)
	if err != nil {
		return err
	}

	logger.Info("Registered service <green>%s</>", self.ServiceName)
	return nil
}

func (self *Manager) Start(ctx context.Context) (
	*services.StartResult, error) {

	logger := logging.GetLogger(self.config_obj, &logging.ServiceComponent)

	status, _, err := self.controller.Query(ctx, self.ServiceName)
	if err == nil && status == services.ServiceRunning {
		return &services.StartResult{
			Confirmed: true,
			Message:   "Service already running",
		}, nil
	}

	err = self.controller.Start(ctx, self.ServiceName)
	if err != nil {
		return nil, err
	}

	logger.Info("Started service <green>%s</>", self.ServiceName)

	return self.waitForListen(ctx)
}

// waitForListen polls the bound port until it accepts connections or
// the poll budget runs out. A timeout does not fail the start - a
// slow starting service is not necessarily broken.
func (self *Manager) waitForListen(ctx context.Context) (
	*services.StartResult, error) {

	logger := logging.GetLogger(self.config_obj, &logging.ServiceComponent)
	address := fmt.Sprintf("%s:%d", self.ProbeAddress, self.ProbePort)

	for i := 0; i < self.PollAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		conn, err := self.Dial("tcp", address, self.PollInterval)
		if err == nil {
			conn.Close()
			logger.Info("Service is listening on <green>%v</>", address)
			return &services.StartResult{
				Confirmed: true,
				Message: fmt.Sprintf(
					"Service is listening on %v", address),
			}, nil
		}

		self.Clock.Sleep(self.PollInterval)
	}

	logger.Warn("Service started but %v did not accept connections "+
		"within %v attempts", address, self.PollAttempts)

	return &services.StartResult{
		Confirmed: false,
		Message: fmt.Sprintf(
			"Service started but port %v is not confirmed listening yet",
			self.ProbePort),
	}, nil
}

func (self *Manager) Stop(ctx context.Context) error {
	logger := logging.GetLogger(self.config_obj, &logging.ServiceComponent)

	status, _, err := self.controller.Query(ctx, self.ServiceName)
	if err != nil {
		return err
	}

	// Stopping a stopped service is not an error.
	if status != services.ServiceRunning {
		return nil
	}

	err = self.controller.Stop(ctx, self.ServiceName)
	if err != nil {
		return err
	}

	logger.Info("Stopped service %s", self.ServiceName)
	return nil
}

func (self *Manager) Restart(ctx context.Context) (
	*services.StartResult, error) {
	err := self.Stop(ctx)
	if err != nil {
		return nil, err
	}

	return self.Start(ctx)
}

func (self *Manager) Remove(ctx context.Context) error {
	logger := logging.GetLogger(self.config_obj, &logging.ServiceComponent)

	pres, err := self.controller.Exists(ctx, self.ServiceName)
	if err != nil {
		return err
	}
	if !pres {
		return nil
	}

	// Best effort stop first - the service may already be
	// stopped.
	err = self.Stop(ctx)
	if err != nil {
		logger.Info("Could not stop service %s: %v",
			self.ServiceName, err)
	}

	err = self.controller.Delete(ctx, self.ServiceName)
	if err != nil {
		return err
	}

	logger.Info("Removed service %s", self.ServiceName)
	return nil
}

// GetStatus always asks the OS - the service can be controlled
// outside this program so cached state is never ground truth.
func (self *Manager) GetStatus(ctx context.Context) (
	*services.ServiceRecord, error) {

	record := &services.ServiceRecord{
		ServiceName: self.ServiceName,
		BinaryPath:  self.binary_path,
		ConfigPath:  self.config_path,
		Status:      services.ServiceNotInstalled,
	}

	pres, err := self.controller.Exists(ctx, self.ServiceName)
	if err != nil {
		return nil, err
	}
	if !pres {
		return record, nil
	}

	status, pid, err := self.controller.Query(ctx, self.ServiceName)
	if err != nil {
		return nil, err
	}

	record.Status = status
	record.Pid = pid
	return record, nil
}
