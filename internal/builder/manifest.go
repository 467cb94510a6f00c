package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/qobs-build/forge/internal/deps"
	"github.com/qobs-build/forge/internal/recipe"
)

// NewManifest describes the package a recipe build produces
func NewManifest(r *recipe.Recipe, resolved []*deps.Package) *deps.Manifest {
	m := &deps.Manifest{
		Name:        r.Package.Name,
		Version:     r.Version,
		BuildID:     uuid.NewString(),
		Settings:    make(map[string]string),
		Options:     make(map[string]string),
		IncludeDirs: slices.Clone(r.Info.IncludeDirs),
		LibDirs:     slices.Clone(r.Info.LibDirs),
		Libs:        slices.Clone(r.Info.Libs),
		Defines:     slices.Clone(r.Info.Defines),
	}
	for _, name := range r.Package.Settings {
		m.Settings[name] = r.Settings.Get(name)
	}
	for name, val := range r.Options {
		m.Options[name] = fmt.Sprint(val)
	}
	for _, pkg := range resolved {
		m.Requires = append(m.Requires, pkg.Ref())
	}
	m.PackageID = PackageID(m)
	return m
}

// PackageID identifies a binary package by what it was built from: the
// reference, settings, options and resolved requirements
func PackageID(m *deps.Manifest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%s\n", m.Name, m.Version)
	for _, k := range sortedKeys(m.Settings) {
		fmt.Fprintf(&sb, "settings.%s=%s\n", k, m.Settings[k])
	}
	for _, k := range sortedKeys(m.Options) {
		fmt.Fprintf(&sb, "options.%s=%s\n", k, m.Options[k])
	}
	for _, req := range m.Requires {
		fmt.Fprintf(&sb, "requires=%s\n", req)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:20])
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
