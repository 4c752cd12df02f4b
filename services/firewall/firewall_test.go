package firewall_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/services/firewall"
)

// fakeMechanism records calls and fails on demand.
type fakeMechanism struct {
	name  string
	rules map[string]uint32
	err   error

	add_calls int
}

func newFakeMechanism(name string) *fakeMechanism {
	return &fakeMechanism{
		name:  name,
		rules: make(map[string]uint32),
	}
}

func (self *fakeMechanism) Name() string {
	return self.name
}

func (self *fakeMechanism) HasRule(
	ctx context.Context, rule_name string) (bool, error) {
	if self.err != nil {
		return false, self.err
	}
	_, pres := self.rules[rule_name]
	return pres, nil
}

func (self *fakeMechanism) AddRule(
	ctx context.Context, rule_name string, port uint32) error {
	self.add_calls++
	if self.err != nil {
		return self.err
	}
	self.rules[rule_name] = port
	return nil
}

func (self *fakeMechanism) DeleteRule(
	ctx context.Context, rule_name string) error {
	if self.err != nil {
		return self.err
	}
	delete(self.rules, rule_name)
	return nil
}

func makeManager(mechanisms ...firewall.Mechanism) *firewall.Manager {
	manager := firewall.NewManager(config.GetDefaultConfig())
	manager.Mechanisms = mechanisms
	return manager
}

func TestOpenPort(t *testing.T) {
	ctx := context.Background()
	primary := newFakeMechanism("primary")
	manager := makeManager(primary)

	require.NoError(t, manager.OpenPort(ctx, 8889, "Velociraptor TCP 8889"))
	assert.Equal(t, uint32(8889), primary.rules["Velociraptor TCP 8889"])
}

func TestOpenPortIsIdempotent(t *testing.T) {
	ctx := context.Background()
	primary := newFakeMechanism("primary")
	manager := makeManager(primary)

	require.NoError(t, manager.OpenPort(ctx, 8889, "Velociraptor TCP 8889"))
	require.NoError(t, manager.OpenPort(ctx, 8889, "Velociraptor TCP 8889"))

	// The second call saw the existing rule and added nothing.
	assert.Equal(t, 1, primary.add_calls)
}

func TestFallbackMechanism(t *testing.T) {
	ctx := context.Background()
	primary := newFakeMechanism("primary")
	primary.err = errors.New("tooling not available")
	fallback := newFakeMechanism("fallback")
	manager := makeManager(primary, fallback)

	require.NoError(t, manager.OpenPort(ctx, 8000, "Velociraptor TCP 8000"))

	assert.Empty(t, primary.rules)
	assert.Equal(t, uint32(8000), fallback.rules["Velociraptor TCP 8000"])
}

func TestAllMechanismsFailing(t *testing.T) {
	ctx := context.Background()
	primary := newFakeMechanism("primary")
	primary.err = errors.New("tooling not available")
	fallback := newFakeMechanism("fallback")
	fallback.err = errors.New("permission denied")
	manager := makeManager(primary, fallback)

	err := manager.OpenPort(ctx, 8000, "Velociraptor TCP 8000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestNoMechanisms(t *testing.T) {
	manager := makeManager()

	err := manager.OpenPort(
		context.Background(), 8000, "Velociraptor TCP 8000")
	require.Error(t, err)
}

func TestClosePort(t *testing.T) {
	ctx := context.Background()
	primary := newFakeMechanism("primary")
	manager := makeManager(primary)

	require.NoError(t, manager.OpenPort(ctx, 8889, "Velociraptor TCP 8889"))
	require.NoError(t, manager.ClosePort(ctx, "Velociraptor TCP 8889"))
	assert.Empty(t, primary.rules)

	// Closing a rule that does not exist is fine.
	assert.NoError(t, manager.ClosePort(ctx, "Velociraptor TCP 8889"))
}
