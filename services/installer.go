package services

import (
	"context"
	"time"
)

// InstalledArtifact describes a binary that was placed in the install
// directory.
type InstalledArtifact struct {
	BinaryPath  string
	Version     string
	InstalledAt time.Time

	// The binary passed the post download checks.
	Verified bool
}

type Installer interface {
	// Install downloads the asset into destination_path. If the
	// destination already contains a binary and force is not set
	// the download is skipped entirely.
	Install(ctx context.Context, asset *ReleaseAsset,
		destination_path string, force bool) (*InstalledArtifact, error)
}
