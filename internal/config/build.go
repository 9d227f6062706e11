package config

// Build metadata injected at compile time via ldflags:
//
//	go build -ldflags "-X .../internal/config.version=v1.2.3 \
//	  -X .../internal/config.commit=$(git rev-parse --short HEAD) \
//	  -X .../internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the build metadata baked into the binary.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
