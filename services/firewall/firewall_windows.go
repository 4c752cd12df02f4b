//go:build windows
// +build windows

package firewall

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"www.velocidex.com/golang/velodeploy/config"
)

func platformMechanisms(config_obj *config.Config) []Mechanism {
	return []Mechanism{
		&powershellMechanism{},
		&netshMechanism{},
	}
}

// powershellMechanism uses the NetSecurity cmdlets.
type powershellMechanism struct{}

func (self *powershellMechanism) Name() string {
	return "PowerShell NetSecurity"
}

func (self *powershellMechanism) run(
	ctx context.Context, script string) ([]byte, error) {
	return exec.CommandContext(ctx, "powershell.exe",
		"-NoProfile", "-NonInteractive", "-Command",
		script).CombinedOutput()
}

func (self *powershellMechanism) HasRule(
	ctx context.Context, rule_name string) (bool, error) {
	_, err := self.run(ctx, fmt.Sprintf(
		"Get-NetFirewallRule -DisplayName '%s' -ErrorAction Stop",
		rule_name))
	return err == nil, nil
}

func (self *powershellMechanism) AddRule(
	ctx context.Context, rule_name string, port uint32) error {
	out, err := self.run(ctx, fmt.Sprintf(
		"New-NetFirewallRule -DisplayName '%s' -Direction Inbound "+
			"-Protocol TCP -LocalPort %d -Action Allow",
		rule_name, port))
	if err != nil {
		return fmt.Errorf("New-NetFirewallRule: %v (%s)",
			err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (self *powershellMechanism) DeleteRule(
	ctx context.Context, rule_name string) error {
	out, err := self.run(ctx, fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s'", rule_name))
	if err != nil {
		return fmt.Errorf("Remove-NetFirewallRule: %v (%s)",
			err, strings.TrimSpace(string(out)))
	}
	return nil
}

// netshMechanism is the fallback for systems where the NetSecurity
// module is unavailable.
type netshMechanism struct{}

func (self *netshMechanism) Name() string {
	return "netsh advfirewall"
}

func (self *netshMechanism) HasRule(
	ctx context.Context, rule_name string) (bool, error) {
	err := exec.CommandContext(ctx, "netsh.exe",
		"advfirewall", "firewall", "show", "rule",
		"name="+rule_name).Run()
	return err == nil, nil
}

func (self *netshMechanism) AddRule(
	ctx context.Context, rule_name string, port uint32) error {
	out, err := exec.CommandContext(ctx, "netsh.exe",
		"advfirewall", "firewall", "add", "rule",
		"name="+rule_name, "dir=in", "action=allow",
		"protocol=TCP",
		fmt.Sprintf("localport=%d", port)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("netsh add rule: %v (%s)",
			err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (self *netshMechanism) DeleteRule(
	ctx context.Context, rule_name string) error {
	out, err := exec.CommandContext(ctx, "netsh.exe",
		"advfirewall", "firewall", "delete", "rule",
		"name="+rule_name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("netsh delete rule: %v (%s)",
			err, strings.TrimSpace(string(out)))
	}
	return nil
}
