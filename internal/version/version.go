// Package version хранит сведения о сборке checkout-service.
package version

import (
	"fmt"
	"runtime"
)

// Проставляются при сборке через -ldflags, например:
//
//	go build -ldflags "-X github.com/daralkutub/checkout/internal/version.version=1.4.0 \
//	  -X github.com/daralkutub/checkout/internal/version.commit=$(git rev-parse --short HEAD) \
//	  -X github.com/daralkutub/checkout/internal/version.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// BuildInfo описывает версию и происхождение работающего бинарника.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get возвращает сведения о текущей сборке.
func Get() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
	}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("checkout-service %s (commit %s, built %s, %s)",
		b.Version, b.Commit, b.BuildDate, b.GoVersion)
}

// String — краткая строка сборки для стартового лога и health-ответа.
func String() string {
	return Get().String()
}
