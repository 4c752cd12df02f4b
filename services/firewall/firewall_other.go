//go:build !windows && !linux
// +build !windows,!linux

package firewall

import (
	"www.velocidex.com/golang/velodeploy/config"
)

func platformMechanisms(config_obj *config.Config) []Mechanism {
	return nil
}
