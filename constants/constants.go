package constants

const (
	VERSION = "0.1.0"

	USER_AGENT = "velodeploy " + VERSION

	// Maximum size of an API response we are prepared to buffer in
	// memory.
	MAX_MEMORY = 5 * 1024 * 1024

	// The upstream project we deploy.
	GITHUB_PROJECT = "Velocidex/velociraptor"
)
