package services

import (
	"context"
)

type ServiceStatus string

const (
	ServiceNotInstalled = ServiceStatus("NotInstalled")
	ServiceStopped      = ServiceStatus("Stopped")
	ServiceRunning      = ServiceStatus("Running")
	ServiceFailed       = ServiceStatus("Failed")
)

// ServiceRecord reflects the OS service manager's view of the
// deployed service. Status is always re-derived from the OS - it is
// never cached as ground truth because the service can be controlled
// outside this program.
type ServiceRecord struct {
	ServiceName string
	BinaryPath  string
	ConfigPath  string
	Status      ServiceStatus
	Pid         int
}

// StartResult reports a Start() outcome. A service that did not
// answer the readiness probe within the poll budget is still started
// - just unconfirmed.
type StartResult struct {
	Confirmed bool
	Message   string
}

type ServiceManager interface {
	// Register installs the binary as an OS service. An existing
	// registration with the same name is removed first.
	Register(ctx context.Context,
		binary_path, config_path string, launch_args []string) error

	Start(ctx context.Context) (*StartResult, error)
	Stop(ctx context.Context) error
	Restart(ctx context.Context) (*StartResult, error)

	// Remove stops the service if needed and deregisters it.
	Remove(ctx context.Context) error

	GetStatus(ctx context.Context) (*ServiceRecord, error)
}
