package utils

import (
	"os"
	"runtime"
	"strings"
)

func GetArch() string {
	res := runtime.GOARCH

	// On windows, detect if we are running in Wow64
	if runtime.GOOS == "windows" {
		proc_arch := os.Getenv("PROCESSOR_ARCHITECTURE")
		if proc_arch != "" {
			res = proc_arch

			if proc_arch == "x86" {
				wow_arch := os.Getenv("PROCESSOR_ARCHITEW6432")
				if wow_arch == "AMD64" {
					res = "wow64"
				}
			}
		}
	}

	return strings.ToLower(res)
}

// GetPlatform returns the release asset platform tag for the running
// system (e.g. "windows-amd64").
func GetPlatform() string {
	arch := GetArch()
	switch arch {
	case "x86_64", "amd64", "wow64":
		arch = "amd64"
	}

	return runtime.GOOS + "-" + arch
}
