package toolchain

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// TODO: zig cc
var (
	commonCCompilers   = []string{"clang", "gcc", "icx", "icc", "tcc", "cl"}
	commonCxxCompilers = []string{"clang++", "g++", "clang", "gcc", "icpx", "icx", "icpc", "icc", "cl"}
)

// FindCompiler attempts to find a suitable C or C++ compiler on the system
func FindCompiler(needCxx bool) string {
	cc := os.Getenv("CC")
	cxx := os.Getenv("CXX")

	if needCxx && cxx != "" {
		return cxx
	}
	if !needCxx && cc != "" {
		return cc
	}

	if cxx != "" {
		return cxx
	}
	if cc != "" {
		return cc
	}

	var compilersToTry []string
	if needCxx {
		compilersToTry = commonCxxCompilers
	} else {
		compilersToTry = commonCCompilers
	}

	for _, compiler := range compilersToTry {
		path, err := exec.LookPath(compiler)
		if err == nil {
			return path
		}
	}

	return ""
}

// CompilerName returns the compiler setting for a compiler binary,
// e.g. /usr/bin/x86_64-linux-gnu-gcc-13 -> gcc
func CompilerName(path string) string {
	// split on both separators, compilers found in a Windows profile are
	// named with backslashes
	base := strings.ToLower(path[strings.LastIndexAny(path, `/\`)+1:])
	base = strings.TrimSuffix(base, ".exe")

	switch {
	case base == "cl":
		return "msvc"
	case strings.Contains(base, "clang"):
		if runtime.GOOS == "darwin" {
			return "apple-clang"
		}
		return "clang"
	case strings.Contains(base, "gcc"), strings.Contains(base, "g++"), base == "cc", base == "c++":
		return "gcc"
	case strings.HasPrefix(base, "ic"):
		return "intel-cc"
	}
	return base
}
