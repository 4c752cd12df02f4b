package services

import (
	"context"
)

// ReleaseAsset describes one downloadable binary selected from the
// upstream release index. Immutable once resolved.
type ReleaseAsset struct {
	Version     string
	DownloadUrl string
	SizeBytes   int64
	Platform    string
}

// Resolver locates the correct release asset for a platform. It is a
// pure query - no retries, no side effects.
type Resolver interface {
	Resolve(ctx context.Context, platform_hint string) (*ReleaseAsset, error)
}
