package svcmanager

import (
	"context"
	"sync"

	errors "github.com/go-errors/errors"
	"www.velocidex.com/golang/velodeploy/services"
)

// VirtualController keeps service registrations in memory. It backs
// dry run deployments and the test suites - no OS state is touched.
type VirtualController struct {
	mu sync.Mutex

	registered map[string]*virtualService

	// Injectable faults.
	StartError error
	NextPid    int
}

type virtualService struct {
	binary_path string
	args        []string
	running     bool
	pid         int
}

func NewVirtualController() *VirtualController {
	return &VirtualController{
		registered: make(map[string]*virtualService),
		NextPid:    1000,
	}
}

func (self *VirtualController) Exists(
	ctx context.Context, name string) (bool, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	_, pres := self.registered[name]
	return pres, nil
}

func (self *VirtualController) Create(
	ctx context.Context, name, binary_path string, args []string) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	_, pres := self.registered[name]
	if pres {
		return errors.Errorf("service %s already exists", name)
	}

	self.registered[name] = &virtualService{
		binary_path: binary_path,
		args:        args,
	}
	return nil
}

func (self *VirtualController) Delete(
	ctx context.Context, name string) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	_, pres := self.registered[name]
	if !pres {
		return errors.Errorf("service %s is not installed", name)
	}

	delete(self.registered, name)
	return nil
}

func (self *VirtualController) Start(
	ctx context.Context, name string) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.StartError != nil {
		return self.StartError
	}

	svc, pres := self.registered[name]
	if !pres {
		return errors.Errorf("service %s is not installed", name)
	}

	if !svc.running {
		svc.running = true
		self.NextPid++
		svc.pid = self.NextPid
	}
	return nil
}

func (self *VirtualController) Stop(
	ctx context.Context, name string) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	svc, pres := self.registered[name]
	if !pres {
		return errors.Errorf("service %s is not installed", name)
	}

	svc.running = false
	svc.pid = 0
	return nil
}

func (self *VirtualController) Query(
	ctx context.Context, name string) (
	services.ServiceStatus, int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	svc, pres := self.registered[name]
	if !pres {
		return services.ServiceNotInstalled, 0, nil
	}

	if svc.running {
		return services.ServiceRunning, svc.pid, nil
	}
	return services.ServiceStopped, 0, nil
}
