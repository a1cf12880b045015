// Package buildinfo reports the version stamped into the binary. Values are set at link time
// through github.com/prometheus/common/version, for example
// -X github.com/prometheus/common/version.Version=v0.3.0.
package buildinfo

import (
	"fmt"

	"github.com/prometheus/common/version"
)

const Graffiti = " _     _                            _       _     \n" +
	"| |__ (_)_   _____  __      ____ _| |_ ___| |__  \n" +
	"| '_ \\| \\ \\ / / _ \\ \\ \\ /\\ / / _` | __/ __| '_ \\ \n" +
	"| | | | |\\ V /  __/  \\ V  V / (_| | || (__| | | |\n" +
	"|_| |_|_| \\_/ \\___|   \\_/\\_/ \\__,_|\\__\\___|_| |_|\n\n"

const Name = "hivewatch"

type buildinfo struct{}

func (buildinfo) Tag() string {
	if version.Version == "" {
		return "v0.0.0"
	}
	return version.Version
}

func (buildinfo) Name() string {
	return Name
}

func (buildinfo) Time() string {
	return version.BuildDate
}

func (buildinfo) Revision() string {
	return version.Revision
}

// String is the one-line banner printed at startup.
func (b buildinfo) String() string {
	return fmt.Sprintf("%s: %s, %s (%s)", b.Name(), b.Time(), b.Tag(), version.BuildContext())
}

var Info buildinfo
