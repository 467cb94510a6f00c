package deps

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/forge/internal/linkflags"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
)

const ManifestFilename = "package.toml"

var ErrNotFound = errors.New("no package satisfies requirement")

// Manifest describes a packaged build, written next to its artifacts
type Manifest struct {
	Name        string            `toml:"name"`
	Version     string            `toml:"version"`
	PackageID   string            `toml:"package_id"`
	BuildID     string            `toml:"build_id"`
	Settings    map[string]string `toml:"settings,omitempty"`
	Options     map[string]string `toml:"options,omitempty"`
	Requires    []string          `toml:"requires,omitempty"`
	IncludeDirs []string          `toml:"includedirs,omitempty"`
	LibDirs     []string          `toml:"libdirs,omitempty"`
	Libs        []string          `toml:"libs,omitempty"`
	Defines     []string          `toml:"defines,omitempty"`
}

func ReadManifest(dir string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(dir, ManifestFilename))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m Manifest
	if err := toml.NewDecoder(bufio.NewReader(f)).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Join(dir, ManifestFilename), err)
	}
	return &m, nil
}

func (m *Manifest) Write(dir string) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFilename), data, 0o644)
}

// Package is a resolved dependency rooted at a directory on disk
type Package struct {
	Name     string
	Version  string
	Root     string
	Includes []string
	Libs     []string
	// LibNames and Defines are what the package's manifest declares for consumers
	LibNames []string
	Defines  []string
}

func (p *Package) IncludeDirs() []string { return p.Includes }
func (p *Package) LibDirs() []string { return p.Libs }

func (p *Package) Ref() string { return p.Name + "/" + p.Version }

// AsDependencies adapts packages for link flag synthesis, keeping their order
func AsDependencies(pkgs []*Package) []linkflags.Dependency {
	out := make([]linkflags.Dependency, len(pkgs))
	for i, pkg := range pkgs {
		out[i] = pkg
	}
	return out
}

// DefineFlags returns -D<define> for the defines of every package, in order
func DefineFlags(pkgs []*Package) []string {
	var flags []string
	for _, pkg := range pkgs {
		for _, def := range pkg.Defines {
			flags = append(flags, "-D"+def)
		}
	}
	return flags
}

// OpenPackage loads the package rooted at dir. Directories from package.toml are
// relative to dir; without a manifest include/ and lib/ are assumed.
func OpenPackage(name, version, dir string) (*Package, error) {
	pkg := &Package{Name: name, Version: version, Root: dir}

	includes, libs := []string{"include"}, []string{"lib"}
	m, err := ReadManifest(dir)
	switch {
	case err == nil:
		if len(m.IncludeDirs) > 0 {
			includes = m.IncludeDirs
		}
		if len(m.LibDirs) > 0 {
			libs = m.LibDirs
		}
		pkg.LibNames = m.Libs
		pkg.Defines = m.Defines
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	for _, inc := range includes {
		pkg.Includes = append(pkg.Includes, rootedPath(dir, inc))
	}
	for _, lib := range libs {
		pkg.Libs = append(pkg.Libs, rootedPath(dir, lib))
	}
	return pkg, nil
}

func rootedPath(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// LocalResolver finds packages already present under Root, laid out as
// <root>/<name>/<version>/. Choosing and building dependencies is up to the caller.
type LocalResolver struct {
	Root string
}

// Resolve returns the newest version satisfying each requirement, in requirement order
func (r LocalResolver) Resolve(reqs []recipe.Requirement) ([]*Package, error) {
	pkgs := make([]*Package, 0, len(reqs))
	for _, req := range reqs {
		pkg, err := r.resolveOne(req)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

func (r LocalResolver) resolveOne(req recipe.Requirement) (*Package, error) {
	constraint, err := req.Constraint()
	if err != nil {
		return nil, err
	}

	nameDir := filepath.Join(r.Root, req.Name)
	entries, err := os.ReadDir(nameDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var (
		best    *semver.Version
		bestDir string
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, err := semver.NewVersion(entry.Name())
		if err != nil {
			msg.Warn("ignoring %s: %q is not a version", filepath.Join(nameDir, entry.Name()), entry.Name())
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestDir = v, entry.Name()
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w %s in %s", ErrNotFound, req, r.Root)
	}
	return OpenPackage(req.Name, bestDir, filepath.Join(nameDir, bestDir))
}
