package toolchain

import (
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchFlags(t *testing.T) {
	tests := []struct {
		compiler, arch, want string
	}{
		{"gcc", "x86_64", "-m64"},
		{"gcc", "x86", "-m32"},
		{"clang", "armv8", "-march=armv8-a"},
		{"apple-clang", "armv8", "-arch arm64"},
	}
	for _, tt := range tests {
		t.Run(tt.compiler+"/"+tt.arch, func(t *testing.T) {
			got, err := ArchFlags(tt.compiler, tt.arch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArchFlags_Unsupported(t *testing.T) {
	_, err := ArchFlags("msvc", "x86_64")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedConfiguration))
	// the message names the supported compilers itself, once
	assert.Equal(t, 1, strings.Count(err.Error(), "apple-clang"), err.Error())

	_, err = ArchFlags("gcc", "sparc")
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)

	_, err = ArchFlags("apple-clang", "x86")
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestCompilers(t *testing.T) {
	assert.Equal(t, []string{"apple-clang", "clang", "gcc"}, Compilers())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "x86_64", NormalizeArch("amd64"))
	assert.Equal(t, "armv8", NormalizeArch("arm64"))
	assert.Equal(t, "riscv64", NormalizeArch("riscv64"))
	assert.Equal(t, "Linux", NormalizeOS("linux"))
	assert.Equal(t, "Macos", NormalizeOS("darwin"))
	assert.Equal(t, "plan9", NormalizeOS("plan9"))
}

func TestCompilerName(t *testing.T) {
	assert.Equal(t, "gcc", CompilerName("/usr/bin/x86_64-linux-gnu-gcc-13"))
	assert.Equal(t, "gcc", CompilerName("cc"))
	assert.Equal(t, "msvc", CompilerName(`C:\VS\bin\cl.exe`))
	assert.Equal(t, "gcc", CompilerName(`C:\msys64\ucrt64\bin\x86_64-w64-mingw32-gcc.exe`))
	assert.Equal(t, "gcc", CompilerName("C:/msys64/ucrt64/bin/gcc.exe"))
	if runtime.GOOS != "darwin" {
		assert.Equal(t, "clang", CompilerName("/usr/bin/clang-18"))
	}
}

func TestFindCompiler_Env(t *testing.T) {
	t.Setenv("CC", "/opt/cc/bin/gcc")
	t.Setenv("CXX", "")
	assert.Equal(t, "/opt/cc/bin/gcc", FindCompiler(false))
	// falls back to CC when no C++ compiler is set
	assert.Equal(t, "/opt/cc/bin/gcc", FindCompiler(true))
}
