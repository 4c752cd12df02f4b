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
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/logging"
	"www.velocidex.com/golang/velodeploy/services"
)

var (
	deploymentStepCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velodeploy_deployment_steps_total",
			Help: "Outcome of each deployment pipeline step.",
		},
		[]string{"step", "status"})
)

type StepStatus string

const (
	StepPass    = StepStatus("Pass")
	StepFail    = StepStatus("Fail")
	StepSkipped = StepStatus("Skipped")
)

// Pipeline step names in execution order.
const (
	StepResolve  = "Resolve"
	StepInstall  = "Install"
	StepGenerate = "Generate"
	StepService  = "Service"
	StepFirewall = "Firewall"
)

type Step struct {
	Name    string
	Status  StepStatus
	Message string
}

// DeploymentResult is the single return value of a Deploy() call.
// The caller (CLI, GUI adapter) decides how to render or persist it.
type DeploymentResult struct {
	DeploymentId  string
	Success       bool
	Steps         []*Step
	ServiceRecord *services.ServiceRecord
	Error         string
}

// Driver sequences the deployment pipeline. All collaborators are
// injected - the driver holds no ambient state.
type Driver struct {
	config_obj *config.Config

	Resolver  services.Resolver
	Installer services.Installer
	Manager   services.ServiceManager
	Firewall  services.Firewall

	// Reinstall the binary even if one is already present.
	Force bool

	// Override the detected platform.
	PlatformHint string
}

func NewDriver(
	config_obj *config.Config,
	resolver services.Resolver,
	installer services.Installer,
	manager services.ServiceManager,
	firewall services.Firewall) *Driver {

	return &Driver{
		config_obj: config_obj,
		Resolver:   resolver,
		Installer:  installer,
		Manager:    manager,
		Firewall:   firewall,
	}
}

// Deploy runs the full pipeline. Failures in the prerequisite chain
// (Resolve, Install, Generate, Service) abort the remaining steps -
// there is no safe degraded mode for those. A firewall failure is
// recorded but never fails the deployment.
func (self *Driver) Deploy(
	ctx context.Context,
	params *config.DeploymentParameters) *DeploymentResult {

	logger := logging.GetLogger(self.config_obj, &logging.ToolComponent)

	result := &DeploymentResult{
		DeploymentId: uuid.New().String(),
	}

	record := func(name string, status StepStatus, message string) {
		result.Steps = append(result.Steps, &Step{
			Name:    name,
			Status:  status,
			Message: message,
		})
		deploymentStepCounter.WithLabelValues(
			name, string(status)).Inc()

		switch status {
		case StepFail:
			logger.Error("Step %v: %v", name, message)
		default:
			logger.Info("Step %v (%v): %v", name, status, message)
		}
	}

	abort := func(failed_step string, err error, skipped ...string) *DeploymentResult {
		record(failed_step, StepFail, err.Error())
		for _, name := range skipped {
			record(name, StepSkipped, fmt.Sprintf(
				"Not attempted because %v failed", failed_step))
		}
		result.Error = err.Error()
		return result
	}

	// Everything below hangs off the resolved asset.
	asset, err := self.Resolver.Resolve(ctx, self.PlatformHint)
	if err != nil {
		return abort(StepResolve, err,
			StepInstall, StepGenerate, StepService, StepFirewall)
	}
	record(StepResolve, StepPass, fmt.Sprintf(
		"Selected release %v for %v", asset.Version, asset.Platform))

	artifact, err := self.Installer.Install(
		ctx, asset, params.BinaryPath(), self.Force)
	if err != nil {
		return abort(StepInstall, err,
			StepGenerate, StepService, StepFirewall)
	}
	record(StepInstall, StepPass, fmt.Sprintf(
		"Installed %v (verified=%v)", artifact.BinaryPath,
		artifact.Verified))

	generated, err := config.Generate(params)
	if err == nil {
		err = generated.Write()
	}
	if err != nil {
		return abort(StepGenerate, err, StepService, StepFirewall)
	}
	record(StepGenerate, StepPass, fmt.Sprintf(
		"Wrote %v config to %v (checksum %.8v)",
		generated.DeploymentType, generated.Path, generated.Checksum))

	err = self.Manager.Register(
		ctx, artifact.BinaryPath, generated.Path, params.LaunchArgs())
	if err != nil {
		return abort(StepService, err, StepFirewall)
	}

	start_result, err := self.Manager.Start(ctx)
	if err != nil {
		return abort(StepService, err, StepFirewall)
	}
	record(StepService, StepPass, start_result.Message)

	self.openPorts(ctx, params, record)

	// The firewall does not gate success - the deployment is good
	// if the service is in place.
	result.Success = true

	record_obj, err := self.Manager.GetStatus(ctx)
	if err == nil {
		result.ServiceRecord = record_obj
	}

	return result
}

// openPorts opens the inbound rules the deployment type needs.
// Always soft - a host without firewall tooling still gets a working
// local deployment.
func (self *Driver) openPorts(
	ctx context.Context,
	params *config.DeploymentParameters,
	record func(name string, status StepStatus, message string)) {

	if params.DeploymentType == config.DeploymentClient {
		record(StepFirewall, StepSkipped,
			"Client deployments accept no inbound connections")
		return
	}

	ports := []uint32{params.GUIBindPort}
	if params.DeploymentType == config.DeploymentServer {
		ports = append(ports, params.BindPort)
	}

	service_name := params.ServiceName
	if service_name == "" {
		service_name = "Velociraptor"
	}

	var failures []string
	for _, port := range ports {
		rule_name := fmt.Sprintf("%s TCP %d", service_name, port)
		err := self.Firewall.OpenPort(ctx, port, rule_name)
		if err != nil {
			failures = append(failures, fmt.Sprintf(
				"port %d: %v", port, err))
		}
	}

	if len(failures) > 0 {
		record(StepFirewall, StepFail, fmt.Sprintf(
			"Firewall rules could not be added (%v) - open the "+
				"ports manually if remote access is needed",
			failures))
		return
	}

	record(StepFirewall, StepPass, fmt.Sprintf(
		"Opened inbound TCP ports %v", ports))
}
