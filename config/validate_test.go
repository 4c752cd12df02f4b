package config

import (
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/velodeploy/utils"
)

func validParams(t *testing.T) *DeploymentParameters {
	params := GetDefaultConfig().Deployment
	params.InstallDirectory = t.TempDir()
	params.DataDirectory = filepath.Join(params.InstallDirectory, "data")
	return params
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validParams(t).Validate())
}

func TestValidatePortBoundaries(t *testing.T) {
	params := validParams(t)
	params.BindPort = 1
	params.GUIBindPort = 65535
	assert.NoError(t, params.Validate())

	params.BindPort = 0
	err := params.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ValidationError))
	assert.Contains(t, err.Error(), "bind_port")

	params.BindPort = 65536
	err = params.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind_port")
}

func TestValidateRejections(t *testing.T) {
	for _, testcase := range []struct {
		name     string
		mutate   func(params *DeploymentParameters)
		expected string
	}{
		{"unknown deployment type",
			func(params *DeploymentParameters) {
				params.DeploymentType = "Cluster"
			},
			"deployment_type"},

		{"frontend and gui ports collide",
			func(params *DeploymentParameters) {
				params.GUIBindPort = params.BindPort
			},
			"gui_bind_port"},

		{"relative install directory",
			func(params *DeploymentParameters) {
				params.InstallDirectory = "velociraptor"
			},
			"install_directory"},

		{"relative data directory",
			func(params *DeploymentParameters) {
				params.DataDirectory = "data"
			},
			"data_directory"},

		{"missing admin user",
			func(params *DeploymentParameters) {
				params.AdminUsername = ""
			},
			"admin_username"},

		{"zero certificate duration",
			func(params *DeploymentParameters) {
				params.CertificateDurationYears = 0
			},
			"certificate_duration_years"},

		{"custom certs without files",
			func(params *DeploymentParameters) {
				params.CertificateType = CertCustom
			},
			"certificate_path"},

		{"custom certs with unreadable files",
			func(params *DeploymentParameters) {
				params.CertificateType = CertCustom
				params.CertificatePath = "/nonexistent/cert.pem"
				params.PrivateKeyPath = "/nonexistent/key.pem"
			},
			"certificate_path"},

		{"letsencrypt without a dns name",
			func(params *DeploymentParameters) {
				params.CertificateType = CertLetsEncrypt
			},
			"public_dns_name"},

		{"unknown certificate type",
			func(params *DeploymentParameters) {
				params.CertificateType = "Spki"
			},
			"certificate_type"},
	} {
		params := validParams(t)
		testcase.mutate(params)

		err := params.Validate()
		require.Error(t, err, testcase.name)
		assert.True(t, errors.Is(err, utils.ValidationError), testcase.name)
		assert.Contains(t, err.Error(), testcase.expected, testcase.name)
	}
}

func TestLaunchArgs(t *testing.T) {
	params := validParams(t)

	assert.Equal(t, []string{
		"--config", params.ConfigPath(), "gui"}, params.LaunchArgs())

	params.DeploymentType = DeploymentServer
	assert.Equal(t, "frontend", params.Subcommand())
	assert.Equal(t, params.BindPort, params.ProbePort())

	params.DeploymentType = DeploymentClient
	assert.Equal(t, "client", params.Subcommand())
	assert.Contains(t, params.ConfigPath(), "client.config.yaml")
}

func TestProbeAddressNeverWildcard(t *testing.T) {
	params := validParams(t)
	params.DeploymentType = DeploymentServer
	params.BindAddress = "0.0.0.0"
	assert.Equal(t, "127.0.0.1", params.ProbeAddress())

	params.BindAddress = "10.0.0.5"
	assert.Equal(t, "10.0.0.5", params.ProbeAddress())
}

func TestConfigRoundTrip(t *testing.T) {
	config_obj := GetDefaultConfig()
	config_obj.Deployment.AdminPassword = "s3cret!"
	config_obj.Deployment.GUIBindPort = 9999

	path := filepath.Join(t.TempDir(), "velodeploy.yaml")
	require.NoError(t, WriteConfigToFile(path, config_obj))

	// The password must never be persisted, under any key.
	raw, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret!")

	// The persisted keys are the documented snake_case ones.
	assert.Contains(t, string(raw), "gui_bind_port:")
	assert.Contains(t, string(raw), "admin_username:")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(9999), loaded.Deployment.GUIBindPort)
	assert.Equal(t, "", loaded.Deployment.AdminPassword)
}
