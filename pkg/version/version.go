// Package version exposes the build version of corpusfork.
package version

// version is set at build time with
// -ldflags "-X github.com/rshade/corpusfork/pkg/version.version=v1.2.3".
var version = "dev" //nolint:gochecknoglobals // Set via ldflags

// GetVersion returns the build version, or "dev" for untagged builds.
func GetVersion() string {
	return version
}
