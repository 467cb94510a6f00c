package recipe

import (
	"bufio"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/qobs-build/forge/internal/toolchain"
)

const Filename = "recipe.toml"

var (
	errNoVersions = errors.New("recipe has no source versions")
)

// PackageSection defines the [package] section
type PackageSection struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Homepage    string   `toml:"homepage"`
	URL         string   `toml:"url"`
	License     string   `toml:"license"`
	Topics      []string `toml:"topics"`
	Type        string   `toml:"type"`
	Settings    []string `toml:"settings"`
}

// RequirementsSection defines the [requirements(.*)] section
type RequirementsSection struct {
	Requires []string `toml:"requires"`
}

// ValidateRule rejects configurations, `[[validate]]`
type ValidateRule struct {
	When    string `toml:"when"`
	Message string `toml:"message"`
}

// BuildSection defines the [build(.*)] section. Its strings are expanded at build time.
type BuildSection struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	Cflags  []string          `toml:"cflags"`
}

type CopyRule struct {
	Src     string `toml:"src"`
	Pattern string `toml:"pattern"`
	Dst     string `toml:"dst"`
}

type DownloadRule struct {
	URL    string `toml:"url"`
	Dst    string `toml:"dst"`
	Sha256 string `toml:"sha256"`
}

// InstallSection defines the [install(.*)] section
type InstallSection struct {
	Copy     []CopyRule     `toml:"copy"`
	Download []DownloadRule `toml:"download"`
}

// InfoSection defines the [info(.*)] section, what consumers of the package need
type InfoSection struct {
	Libs        []string `toml:"libs"`
	IncludeDirs []string `toml:"includedirs"`
	LibDirs     []string `toml:"libdirs"`
	Defines     []string `toml:"defines"`
}

type Recipe struct {
	Dir      string
	Package  PackageSection
	Version  string
	Settings Settings
	// Options holds the resolved option values, minus removed ones
	Options  map[string]any
	Requires []Requirement
	Validate []ValidateRule
	Build    BuildSection
	Install  InstallSection
	Info     InfoSection
	Source   Source
	Patches  []Patch

	optionDefs map[string]OptionDef
	env        Env
}

// Load reads the recipe in dir and resolves it for the given settings, option
// overrides and version. An empty version selects the newest one.
func Load(dir string, settings Settings, overrides map[string]string, version string) (*Recipe, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, Filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rawConfig, err := decodeRaw(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(dir, Filename), err)
	}

	r := &Recipe{Dir: dir, Settings: settings}
	if err := unmarshalSection(rawConfig, "package", &r.Package); err != nil {
		return nil, err
	}
	if r.Package.Name == "" {
		r.Package.Name = filepath.Base(dir)
	}
	if err := unmarshalSection(rawConfig, "options", &r.optionDefs); err != nil {
		return nil, err
	}

	sources, err := ParseSourcesFile(filepath.Join(dir, SourcesFilename))
	if err != nil {
		return nil, err
	}
	if version == "" {
		version = sources.Latest()
		if version == "" {
			return nil, errNoVersions
		}
	}
	src, ok := sources.Sources[version]
	if !ok {
		return nil, fmt.Errorf("unknown version %q of %s, known versions: %v", version, r.Package.Name, sources.Versions())
	}
	r.Version = version
	r.Source = src
	r.Patches = sources.Patches[version]

	options, err := resolveOptions(r.optionDefs, overrides)
	if err != nil {
		return nil, err
	}
	r.env = NewEnv(r.Package.Name, r.Version, settings, options)
	if r.Options, err = pruneOptions(r.optionDefs, r.env); err != nil {
		return nil, err
	}
	r.env.Options = maps.Clone(r.Options)

	// [build] is expanded later, once dependency and source paths are known
	for key, val := range rawConfig {
		if key == "build" {
			continue
		}
		processed, err := processExpressions(val, r.env)
		if err != nil {
			return nil, fmt.Errorf("error processing expressions in [%s]: %w", key, err)
		}
		rawConfig[key] = processed
	}
	if err := unmarshalSection(rawConfig, "package", &r.Package); err != nil {
		return nil, err
	}

	var reqs RequirementsSection
	if err := unmarshalConditionalSection(rawConfig, "requirements", &reqs, r.env); err != nil {
		return nil, err
	}
	for _, ref := range reqs.Requires {
		req, err := ParseRequirement(ref)
		if err != nil {
			return nil, err
		}
		r.Requires = append(r.Requires, req)
	}

	var validate struct {
		Rules []ValidateRule `toml:"validate"`
	}
	if v, ok := rawConfig["validate"]; ok {
		if err := remarshal(map[string]any{"validate": v}, &validate); err != nil {
			return nil, fmt.Errorf("failed to parse [[validate]]: %w", err)
		}
	}
	r.Validate = validate.Rules

	if err := unmarshalConditionalSection(rawConfig, "build", &r.Build, r.env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "install", &r.Install, r.env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "info", &r.Info, r.env); err != nil {
		return nil, err
	}
	if len(r.Info.IncludeDirs) == 0 {
		r.Info.IncludeDirs = []string{"include"}
	}
	if len(r.Info.LibDirs) == 0 {
		r.Info.LibDirs = []string{"lib"}
	}

	return r, nil
}

// Env returns the expression environment the recipe was resolved with
func (r *Recipe) Env() Env {
	return r.env
}

// CheckConfiguration runs the [[validate]] rules. A matching rule yields an
// error wrapping toolchain.ErrUnsupportedConfiguration.
func (r *Recipe) CheckConfiguration() error {
	for _, rule := range r.Validate {
		bad, err := evalBool(rule.When, r.env)
		if err != nil {
			return fmt.Errorf("validate rule %q of %s: %w", rule.When, r.Package.Name, err)
		}
		if bad {
			msg := rule.Message
			if msg == "" {
				msg = rule.When
			}
			return fmt.Errorf("%w: %s: %s", toolchain.ErrUnsupportedConfiguration, r.Package.Name, msg)
		}
	}
	return nil
}

// OptionNames returns every declared option, including removed ones
func (r *Recipe) OptionNames() []string {
	return slices.Sorted(maps.Keys(r.optionDefs))
}

// OptionDef returns the declaration of an option
func (r *Recipe) OptionDef(name string) (OptionDef, bool) {
	def, ok := r.optionDefs[name]
	return def, ok
}

// Shared reports whether the recipe is configured to produce shared libraries
func (r *Recipe) Shared() bool {
	shared, _ := r.Options["shared"].(bool)
	return shared
}

// Ref is name/version
func (r *Recipe) Ref() string {
	return r.Package.Name + "/" + r.Version
}
