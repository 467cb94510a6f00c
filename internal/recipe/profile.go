package recipe

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/forge/internal/toolchain"
)

// Profile is a reusable set of settings and option values, loaded from TOML:
//
//	[settings]
//	os = "Linux"
//	build_type = "Release"
//
//	[options]
//	shared = true                      # every package
//	"aerospike-client-c:event_library" = "libuv"
type Profile struct {
	Settings Settings       `toml:"settings"`
	Options  map[string]any `toml:"options"`
}

// DetectProfile describes the host, with the first compiler found on the PATH
func DetectProfile() Profile {
	return Profile{
		Settings: Settings{
			OS:        toolchain.NormalizeOS(runtime.GOOS),
			Arch:      toolchain.NormalizeArch(runtime.GOARCH),
			Compiler:  toolchain.CompilerName(toolchain.FindCompiler(false)),
			BuildType: "Release",
		},
	}
}

// LoadProfile reads a profile file on top of the detected host profile
func LoadProfile(path string) (Profile, error) {
	prof := DetectProfile()
	if path == "" {
		return prof, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return prof, err
	}
	defer f.Close()

	var loaded Profile
	dec := toml.NewDecoder(bufio.NewReader(f))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&loaded); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return prof, fmt.Errorf("profile %s: %s", path, derr.String())
		}
		return prof, fmt.Errorf("profile %s: %w", path, err)
	}

	if err := mergeStructs(&prof.Settings, loaded.Settings); err != nil {
		return prof, err
	}
	prof.Options = loaded.Options
	return prof, nil
}

// OptionsFor returns the option values that apply to pkg. Unscoped keys and
// `*:` keys apply to every package and are overridden by `pkg:` keys.
func (p Profile) OptionsFor(pkg string) map[string]string {
	out := make(map[string]string)
	scoped := make(map[string]string)
	for key, val := range p.Options {
		scope, name, ok := strings.Cut(key, ":")
		switch {
		case !ok:
			out[key] = formatProfileValue(val)
		case scope == "*":
			out[name] = formatProfileValue(val)
		case scope == pkg:
			scoped[name] = formatProfileValue(val)
		}
	}
	for k, v := range scoped {
		out[k] = v
	}
	return out
}

func formatProfileValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
