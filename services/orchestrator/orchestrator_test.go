package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/services"
	"www.velocidex.com/golang/velodeploy/services/orchestrator"
	"www.velocidex.com/golang/velodeploy/services/svcmanager"
	"www.velocidex.com/golang/velodeploy/utils"
)

type fakeResolver struct {
	err error
}

func (self *fakeResolver) Resolve(
	ctx context.Context, platform_hint string) (
	*services.ReleaseAsset, error) {
	if self.err != nil {
		return nil, self.err
	}
	return &services.ReleaseAsset{
		Version:     "0.7.1",
		DownloadUrl: "https://dl.example.com/velociraptor",
		SizeBytes:   1000,
		Platform:    "linux-amd64",
	}, nil
}

type fakeInstaller struct {
	err   error
	calls int
}

func (self *fakeInstaller) Install(
	ctx context.Context, asset *services.ReleaseAsset,
	destination_path string, force bool) (
	*services.InstalledArtifact, error) {
	self.calls++
	if self.err != nil {
		return nil, self.err
	}
	return &services.InstalledArtifact{
		BinaryPath: destination_path,
		Version:    asset.Version,
		Verified:   true,
	}, nil
}

type fakeFirewall struct {
	err   error
	rules []string
}

func (self *fakeFirewall) OpenPort(
	ctx context.Context, port uint32, rule_name string) error {
	if self.err != nil {
		return self.err
	}
	self.rules = append(self.rules, rule_name)
	return nil
}

func (self *fakeFirewall) ClosePort(
	ctx context.Context, rule_name string) error {
	return nil
}

type fixture struct {
	params    *config.DeploymentParameters
	resolver  *fakeResolver
	installer *fakeInstaller
	firewall  *fakeFirewall
	manager   *svcmanager.Manager
	driver    *orchestrator.Driver
}

func makeFixture(t *testing.T) *fixture {
	config_obj := config.GetDefaultConfig()
	params := config_obj.Deployment
	params.InstallDirectory = t.TempDir()
	params.DataDirectory = filepath.Join(params.InstallDirectory, "data")
	params.AdminPassword = "test password"

	// Fixed certificates keep the pipeline fast.
	params.CertificateType = config.CertCustom
	params.CertificatePath = filepath.Join(
		params.InstallDirectory, "cert.pem")
	params.PrivateKeyPath = filepath.Join(
		params.InstallDirectory, "key.pem")
	require.NoError(t, ioutil.WriteFile(
		params.CertificatePath, []byte("cert material"), 0600))
	require.NoError(t, ioutil.WriteFile(
		params.PrivateKeyPath, []byte("key material"), 0600))

	manager := svcmanager.NewManager(
		config_obj, svcmanager.NewVirtualController(), params)
	manager.Dial = func(network, address string,
		timeout time.Duration) (net.Conn, error) {
		client, server := net.Pipe()
		go server.Close()
		return client, nil
	}

	result := &fixture{
		params:    params,
		resolver:  &fakeResolver{},
		installer: &fakeInstaller{},
		firewall:  &fakeFirewall{},
		manager:   manager,
	}
	result.driver = orchestrator.NewDriver(config_obj,
		result.resolver, result.installer, result.manager, result.firewall)
	return result
}

func stepByName(result *orchestrator.DeploymentResult,
	name string) *orchestrator.Step {
	for _, step := range result.Steps {
		if step.Name == name {
			return step
		}
	}
	return nil
}

func TestDeployEndToEnd(t *testing.T) {
	fixture := makeFixture(t)

	result := fixture.driver.Deploy(context.Background(), fixture.params)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.DeploymentId)
	require.Len(t, result.Steps, 5)
	for _, step := range result.Steps {
		assert.Equal(t, orchestrator.StepPass, step.Status, step.Name)
	}

	// The config landed on disk.
	raw, err := ioutil.ReadFile(fixture.params.ConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "server_urls")

	// The service ended up running.
	require.NotNil(t, result.ServiceRecord)
	assert.Equal(t, services.ServiceRunning, result.ServiceRecord.Status)
	assert.NotZero(t, result.ServiceRecord.Pid)

	// Standalone opens the GUI port only.
	assert.Equal(t, []string{"Velociraptor TCP 8889"},
		fixture.firewall.rules)
}

func TestServerDeploymentOpensBothPorts(t *testing.T) {
	fixture := makeFixture(t)
	fixture.params.DeploymentType = config.DeploymentServer

	result := fixture.driver.Deploy(context.Background(), fixture.params)
	require.True(t, result.Success)

	assert.Equal(t, []string{
		"Velociraptor TCP 8889",
		"Velociraptor TCP 8000",
	}, fixture.firewall.rules)
}

func TestFirewallFailureDoesNotFailDeployment(t *testing.T) {
	fixture := makeFixture(t)
	fixture.firewall.err = errors.New("netsh not found")

	result := fixture.driver.Deploy(context.Background(), fixture.params)

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)

	step := stepByName(result, orchestrator.StepFirewall)
	require.NotNil(t, step)
	assert.Equal(t, orchestrator.StepFail, step.Status)
	assert.Contains(t, step.Message, "manually")
}

func TestResolveFailureAbortsPipeline(t *testing.T) {
	fixture := makeFixture(t)
	fixture.resolver.err = utils.Wrap(
		utils.NetworkError, "index unreachable")

	result := fixture.driver.Deploy(context.Background(), fixture.params)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "index unreachable")
	assert.Zero(t, fixture.installer.calls)

	// Every step is accounted for even on an early abort.
	require.Len(t, result.Steps, 5)
	assert.Equal(t, orchestrator.StepFail,
		stepByName(result, orchestrator.StepResolve).Status)
	for _, name := range []string{
		orchestrator.StepInstall,
		orchestrator.StepGenerate,
		orchestrator.StepService,
		orchestrator.StepFirewall,
	} {
		assert.Equal(t, orchestrator.StepSkipped,
			stepByName(result, name).Status, name)
	}
}

func TestInvalidParamsFailGenerate(t *testing.T) {
	fixture := makeFixture(t)
	fixture.params.AdminUsername = ""

	result := fixture.driver.Deploy(context.Background(), fixture.params)

	assert.False(t, result.Success)
	assert.Equal(t, orchestrator.StepFail,
		stepByName(result, orchestrator.StepGenerate).Status)
	assert.Equal(t, orchestrator.StepSkipped,
		stepByName(result, orchestrator.StepService).Status)
}

func TestClientDeploymentSkipsFirewall(t *testing.T) {
	fixture := makeFixture(t)
	fixture.params.DeploymentType = config.DeploymentClient
	fixture.params.PublicDNSName = "velo.example.com"

	result := fixture.driver.Deploy(context.Background(), fixture.params)
	require.True(t, result.Success)

	step := stepByName(result, orchestrator.StepFirewall)
	require.NotNil(t, step)
	assert.Equal(t, orchestrator.StepSkipped, step.Status)
	assert.Empty(t, fixture.firewall.rules)
}

func TestSecretsNeverLeak(t *testing.T) {
	fixture := makeFixture(t)
	fixture.params.AdminPassword = "Hunter2!ReallySecret"

	result := fixture.driver.Deploy(context.Background(), fixture.params)
	require.True(t, result.Success)

	serialized := fmt.Sprintf("%#v", result)
	for _, step := range result.Steps {
		serialized += step.Message
	}
	assert.NotContains(t, serialized, fixture.params.AdminPassword)

	// Nor does the password reach the persisted config.
	raw, err := ioutil.ReadFile(fixture.params.ConfigPath())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), fixture.params.AdminPassword)
}
