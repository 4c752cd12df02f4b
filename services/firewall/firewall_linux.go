//go:build linux
// +build linux

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
		&ufwMechanism{},
		&iptablesMechanism{},
	}
}

// ufw has no named rules so the rule name travels in the comment.
type ufwMechanism struct{}

func (self *ufwMechanism) Name() string {
	return "ufw"
}

func (self *ufwMechanism) HasRule(
	ctx context.Context, rule_name string) (bool, error) {
	out, err := exec.CommandContext(
		ctx, "ufw", "status").CombinedOutput()
	if err != nil {
		return false, err
	}
	return strings.Contains(string(out), rule_name), nil
}

func (self *ufwMechanism) AddRule(
	ctx context.Context, rule_name string, port uint32) error {
	out, err := exec.CommandContext(ctx, "ufw", "allow",
		fmt.Sprintf("%d/tcp", port),
		"comment", rule_name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ufw allow: %v (%s)",
			err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (self *ufwMechanism) DeleteRule(
	ctx context.Context, rule_name string) error {
	// ufw can only delete by rule spec, not by comment - rules
	// added by us are removed by the port spec recorded in the
	// status output.
	out, err := exec.CommandContext(
		ctx, "ufw", "status", "numbered").CombinedOutput()
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, rule_name) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		spec := fields[1]
		del_out, err := exec.CommandContext(ctx, "ufw",
			"--force", "delete", "allow", spec).CombinedOutput()
		if err != nil {
			return fmt.Errorf("ufw delete: %v (%s)",
				err, strings.TrimSpace(string(del_out)))
		}
		return nil
	}
	return nil
}

type iptablesMechanism struct{}

func (self *iptablesMechanism) Name() string {
	return "iptables"
}

func (self *iptablesMechanism) args(
	action, rule_name string, port uint32) []string {
	return []string{
		action, "INPUT", "-p", "tcp",
		"--dport", fmt.Sprintf("%d", port),
		"-j", "ACCEPT",
		"-m", "comment", "--comment", rule_name,
	}
}

func (self *iptablesMechanism) HasRule(
	ctx context.Context, rule_name string) (bool, error) {
	out, err := exec.CommandContext(ctx, "iptables-save").Output()
	if err != nil {
		return false, err
	}
	return strings.Contains(string(out), rule_name), nil
}

func (self *iptablesMechanism) AddRule(
	ctx context.Context, rule_name string, port uint32) error {
	out, err := exec.CommandContext(ctx, "iptables",
		self.args("-A", rule_name, port)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("iptables -A: %v (%s)",
			err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (self *iptablesMechanism) DeleteRule(
	ctx context.Context, rule_name string) error {
	// We do not know the original port from the name alone -
	// parse it back out of iptables-save.
	out, err := exec.CommandContext(ctx, "iptables-save").Output()
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, rule_name) ||
			!strings.HasPrefix(line, "-A INPUT") {
			continue
		}

		args := strings.Fields(line)
		args[0] = "-D"
		del_out, err := exec.CommandContext(
			ctx, "iptables", args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("iptables -D: %v (%s)",
				err, strings.TrimSpace(string(del_out)))
		}
		return nil
	}
	return nil
}
