package toolchain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnsupportedConfiguration is returned for settings a recipe or toolchain can't build
var ErrUnsupportedConfiguration = errors.New("unsupported configuration")

var gnuArchFlags = map[string]string{
	"x86":     "-m32",
	"x86_64":  "-m64",
	"ppc64le": "-m64",
	"s390x":   "-m64",
	"armv7":   "-march=armv7-a",
	"armv8":   "-march=armv8-a",
}

// compiler -> arch -> code generation flags
var archFlagTable = map[string]map[string]string{
	"gcc":   gnuArchFlags,
	"clang": gnuArchFlags,
	"apple-clang": {
		"x86_64": "-arch x86_64",
		"armv8":  "-arch arm64",
	},
}

// ArchFlags returns the code generation flags for building with compiler on arch
func ArchFlags(compiler, arch string) (string, error) {
	arches, ok := archFlagTable[compiler]
	if !ok {
		return "", fmt.Errorf("%w: compiler %q is not supported (supported: %s)",
			ErrUnsupportedConfiguration, compiler, strings.Join(Compilers(), ", "))
	}
	flags, ok := arches[arch]
	if !ok {
		return "", fmt.Errorf("%w: arch %q is not supported by %s", ErrUnsupportedConfiguration, arch, compiler)
	}
	return flags, nil
}

// Compilers lists the compilers ArchFlags knows about
func Compilers() []string {
	names := make([]string, 0, len(archFlagTable))
	for name := range archFlagTable {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var goArches = map[string]string{
	"386":     "x86",
	"amd64":   "x86_64",
	"arm":     "armv7",
	"arm64":   "armv8",
	"ppc64le": "ppc64le",
	"s390x":   "s390x",
}

// NormalizeArch maps a GOARCH value onto an arch setting
func NormalizeArch(goarch string) string {
	if arch, ok := goArches[goarch]; ok {
		return arch
	}
	return goarch
}

var goOSes = map[string]string{
	"linux":   "Linux",
	"darwin":  "Macos",
	"windows": "Windows",
	"freebsd": "FreeBSD",
}

// NormalizeOS maps a GOOS value onto an os setting
func NormalizeOS(goos string) string {
	if os, ok := goOSes[goos]; ok {
		return os
	}
	return goos
}
