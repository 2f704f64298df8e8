// Package version records the build version reported in the User-Agent
// and by the -version flag.
package version

// Version is the current release. Overridable at build time via
// -ldflags "-X github.com/sotomaque/emoji-map-sub000/pkg/version.Version=v1.2.3".
var Version = "0.4.0"
