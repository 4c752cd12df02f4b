//go:build !windows && !linux
// +build !windows,!linux

package svcmanager

import (
	"www.velocidex.com/golang/velodeploy/config"
	"www.velocidex.com/golang/velodeploy/utils"
)

func NewController(config_obj *config.Config) (Controller, error) {
	return nil, utils.Wrap(utils.NotSupportedError,
		"No service manager support on this platform")
}
