package version

import (
	"runtime/debug"
	"sync"
)

const Header = "X-Adega-Version"

const (
	versionDevel = "devel"
	userAgentApp = "adega"
)

// version is set via ldflags at build time.
// falls back to debug.ReadBuildInfo for go install.
var version = versionDevel

var once sync.Once

func Get() string {
	once.Do(func() {
		if version != versionDevel {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if v := info.Main.Version; v != "" && v != "("+versionDevel+")" {
			version = v
		}
	})
	return version
}

// UserAgent is sent on every outbound request to the ERP.
func UserAgent() string {
	return userAgentApp + "/" + Get()
}

// IsDevelopment reports whether v is a local build without a release tag.
func IsDevelopment(v string) bool {
	return v == versionDevel || v == "" || v == "(devel)"
}
