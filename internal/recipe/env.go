package recipe

import (
	"maps"
	"os"
	"strings"
)

// Settings are the platform properties a binary package is built for
type Settings struct {
	OS        string `toml:"os"`
	Arch      string `toml:"arch"`
	Compiler  string `toml:"compiler"`
	BuildType string `toml:"build_type"`
}

// Set assigns a setting by name, as given with `-s key=value`
func (s *Settings) Set(key, value string) bool {
	switch key {
	case "os":
		s.OS = value
	case "arch":
		s.Arch = value
	case "compiler":
		s.Compiler = value
	case "build_type":
		s.BuildType = value
	default:
		return false
	}
	return true
}

// Get returns a setting by name
func (s Settings) Get(key string) string {
	switch key {
	case "os":
		return s.OS
	case "arch":
		return s.Arch
	case "compiler":
		return s.Compiler
	case "build_type":
		return s.BuildType
	}
	return ""
}

// Env is what recipe expressions can see
type Env struct {
	Name      string            `expr:"name"`
	Version   string            `expr:"version"`
	OS        string            `expr:"os"`
	Arch      string            `expr:"arch"`
	Compiler  string            `expr:"compiler"`
	BuildType string            `expr:"build_type"`
	Options   map[string]any    `expr:"options"`
	Environ   map[string]string `expr:"environ"`
}

func NewEnv(name, version string, settings Settings, options map[string]any) Env {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return Env{
		Name:      name,
		Version:   version,
		OS:        settings.OS,
		Arch:      settings.Arch,
		Compiler:  settings.Compiler,
		BuildType: settings.BuildType,
		Options:   maps.Clone(options),
		Environ:   environ,
	}
}
