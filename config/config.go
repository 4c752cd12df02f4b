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
package config

import (
	"io/ioutil"
	"path/filepath"
	"runtime"

	"github.com/Velocidex/yaml/v2"
	errors "github.com/go-errors/errors"
)

// Deployment topology.
const (
	DeploymentStandalone = "Standalone"
	DeploymentServer     = "Server"
	DeploymentClient     = "Client"
)

// Certificate provisioning modes.
const (
	CertSelfSigned  = "SelfSigned"
	CertCustom      = "Custom"
	CertLetsEncrypt = "LetsEncrypt"
)

// DeploymentParameters is the complete input to a deployment. It is
// collected by the caller (CLI flags, config file or the interactive
// wizard) and handed to the orchestrator in one piece - no component
// reads ambient state.
type DeploymentParameters struct {
	DeploymentType   string `json:"deployment_type,omitempty"`
	InstallDirectory string `json:"install_directory,omitempty"`
	DataDirectory    string `json:"data_directory,omitempty"`

	BindAddress    string `json:"bind_address,omitempty"`
	BindPort       uint32 `json:"bind_port,omitempty"`
	GUIBindAddress string `json:"gui_bind_address,omitempty"`
	GUIBindPort    uint32 `json:"gui_bind_port,omitempty"`

	OrganizationName string `json:"organization_name,omitempty"`
	AdminUsername    string `json:"admin_username,omitempty"`

	// Never persisted - must be supplied each run. Velocidex/yaml
	// keys fields off json tags so this is the tag that excludes it.
	AdminPassword string `json:"-"`

	CertificateType          string `json:"certificate_type,omitempty"`
	CertificateDurationYears int    `json:"certificate_duration_years,omitempty"`

	// For the Custom certificate type.
	CertificatePath string `json:"certificate_path,omitempty"`
	PrivateKeyPath  string `json:"private_key_path,omitempty"`

	// Required for LetsEncrypt.
	PublicDNSName string `json:"public_dns_name,omitempty"`

	ServiceName string `json:"service_name,omitempty"`
}

type LoggingConfig struct {
	OutputDirectory          string `json:"output_directory,omitempty"`
	SeparateLogsPerComponent bool   `json:"separate_logs_per_component,omitempty"`
}

// Config is the tool's own configuration file.
type Config struct {
	Deployment *DeploymentParameters `json:"Deployment,omitempty"`
	Logging    *LoggingConfig        `json:"Logging,omitempty"`
}

func GetDefaultConfig() *Config {
	install_dir := "/opt/velociraptor"
	if runtime.GOOS == "windows" {
		install_dir = "C:\\Program Files\\Velociraptor"
	}

	return &Config{
		Deployment: &DeploymentParameters{
			DeploymentType:           DeploymentStandalone,
			InstallDirectory:         install_dir,
			DataDirectory:            filepath.Join(install_dir, "data"),
			BindAddress:              "0.0.0.0",
			BindPort:                 8000,
			GUIBindAddress:           "127.0.0.1",
			GUIBindPort:              8889,
			AdminUsername:            "admin",
			CertificateType:          CertSelfSigned,
			CertificateDurationYears: 1,
			ServiceName:              "Velociraptor",
		},
		Logging: &LoggingConfig{},
	}
}

func LoadConfig(filename string) (*Config, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	config_obj := GetDefaultConfig()
	err = yaml.UnmarshalStrict(data, config_obj)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	return config_obj, nil
}

func WriteConfigToFile(filename string, config_obj *Config) error {
	data, err := yaml.Marshal(config_obj)
	if err != nil {
		return err
	}

	// Config files may contain secrets so must not be world
	// readable.
	return ioutil.WriteFile(filename, data, 0600)
}

// BinaryPath is where the deployed binary lives inside the install
// directory.
func (self *DeploymentParameters) BinaryPath() string {
	name := "velociraptor"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(self.InstallDirectory, name)
}

// ConfigPath is where the generated config document is persisted.
func (self *DeploymentParameters) ConfigPath() string {
	name := "server.config.yaml"
	if self.DeploymentType == DeploymentClient {
		name = "client.config.yaml"
	}
	return filepath.Join(self.InstallDirectory, name)
}

// Subcommand the service launches the binary with.
func (self *DeploymentParameters) Subcommand() string {
	switch self.DeploymentType {
	case DeploymentServer:
		return "frontend"
	case DeploymentClient:
		return "client"
	default:
		return "gui"
	}
}

// LaunchArgs are the full service command line arguments.
func (self *DeploymentParameters) LaunchArgs() []string {
	return []string{"--config", self.ConfigPath(), self.Subcommand()}
}

// The port the readiness poll should probe after service start.
func (self *DeploymentParameters) ProbePort() uint32 {
	if self.DeploymentType == DeploymentServer {
		return self.BindPort
	}
	return self.GUIBindPort
}

func (self *DeploymentParameters) ProbeAddress() string {
	addr := self.GUIBindAddress
	if self.DeploymentType == DeploymentServer {
		addr = self.BindAddress
	}

	// A wildcard bind is probed over loopback.
	if addr == "0.0.0.0" || addr == "" || addr == "::" {
		addr = "127.0.0.1"
	}
	return addr
}
