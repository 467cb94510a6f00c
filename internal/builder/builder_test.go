package builder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/qobs-build/forge/internal/deps"
	"github.com/qobs-build/forge/internal/linkflags"
	"github.com/qobs-build/forge/internal/recipe"
	"github.com/qobs-build/forge/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linuxGCC = recipe.Settings{OS: "Linux", Arch: "x86_64", Compiler: "gcc", BuildType: "Release"}

// fakeRunner records commands and pretends to be make, leaving libraries in
// <dir>/target/lib
type fakeRunner struct {
	cmds    []Command
	outputs []string
	err     error
}

func (r *fakeRunner) Run(ctx context.Context, c Command) error {
	r.cmds = append(r.cmds, c)
	if r.err != nil {
		return r.err
	}
	for _, out := range r.outputs {
		path := filepath.Join(c.Dir, "target", "lib", out)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeFetcher struct {
	fetched   []string
	downloads []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, src recipe.Source, version, dst string) error {
	f.fetched = append(f.fetched, src.URL)
	for _, file := range []string{"Makefile", "LICENSE.md", "src/include/aerospike/as_std.h"} {
		path := filepath.Join(dst, filepath.FromSlash(file))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(file), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFetcher) DownloadFile(ctx context.Context, src, dst, sha256 string) error {
	f.downloads = append(f.downloads, src)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte("license"), 0o644)
}

type fixture struct {
	root, work, out, deps string
	runner                *fakeRunner
	fetcher               *fakeFetcher
}

func (fx *fixture) file(t *testing.T, elem ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{fx.deps}, elem...)...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	fx := &fixture{
		root:    root,
		work:    filepath.Join(root, "work"),
		out:     filepath.Join(root, "out"),
		deps:    filepath.Join(root, "deps"),
		runner:  &fakeRunner{},
		fetcher: &fakeFetcher{},
	}
	fx.file(t, "openssl", "3.2.0", "include", "openssl", "ssl.h")
	fx.file(t, "openssl", "3.2.0", "lib", "libssl.so.3")
	fx.file(t, "openssl", "3.2.0", "lib", "libcrypto.a")
	fx.file(t, "zlib", "1.3.1", "include", "zlib.h")
	fx.file(t, "zlib", "1.3.1", "lib", "libz.a")
	return fx
}

func (fx *fixture) builder(t *testing.T, name string, settings recipe.Settings, overrides map[string]string) *Builder {
	t.Helper()
	r, err := recipe.Load(filepath.Join("..", "..", "recipes", name), settings, overrides, "")
	require.NoError(t, err)
	b := New(r, fx.work, fx.out, fx.deps)
	b.Runner = fx.runner
	b.Fetcher = fx.fetcher
	return b
}

func (fx *fixture) dep(elem ...string) string {
	return filepath.Join(append([]string{fx.deps}, elem...)...)
}

func TestPlan_CommonShared(t *testing.T) {
	fx := newFixture(t)
	b := fx.builder(t, "aerospike-common", linuxGCC, map[string]string{"shared": "true"})

	plan, err := b.Plan()
	require.NoError(t, err)

	sslLib, zLib := fx.dep("openssl", "3.2.0", "lib"), fx.dep("zlib", "1.3.1", "lib")
	assert.Equal(t, []string{"-L" + sslLib, "-L" + zLib}, plan.LinkFlags.SearchPaths)
	assert.Equal(t, []string{"-lssl"}, plan.LinkFlags.DynamicLibs)
	assert.Equal(t, []string{filepath.Join(sslLib, "libcrypto.a"), filepath.Join(zLib, "libz.a")}, plan.LinkFlags.StaticLibs)
	assert.Equal(t, "-m64", plan.ArchFlags)

	srcDir := filepath.Join(fx.work, "aerospike-common", "1.7.4", "src")
	assert.Equal(t, srcDir, plan.SourceDir)
	assert.Equal(t, Command{
		Name: "make",
		Dir:  srcDir,
		Args: []string{
			"TARGET_BASE=target",
			"EXT_CFLAGS=-I" + fx.dep("openssl", "3.2.0", "include") + " -I" + fx.dep("zlib", "1.3.1", "include") + " -m64",
			"-C",
			srcDir,
			"LDFLAGS=" + plan.LinkFlags.String(),
		},
	}, plan.Command)
}

func TestPlan_CommonStatic(t *testing.T) {
	fx := newFixture(t)
	b := fx.builder(t, "aerospike-common", linuxGCC, nil)

	plan, err := b.Plan()
	require.NoError(t, err)
	require.Len(t, plan.Command.Args, 4)
	assert.True(t, strings.HasSuffix(plan.Command.Args[1], " -m64 -fPIC"), plan.Command.Args[1])
}

func TestPlan_ClientEventLibrary(t *testing.T) {
	fx := newFixture(t)
	fx.file(t, "lua", "5.4.6", "include", "lua.h")
	fx.file(t, "lua", "5.4.6", "lib", "liblua.a")
	fx.file(t, "libuv", "1.48.0", "lib", "libuv.a")
	b := fx.builder(t, "aerospike-client-c", linuxGCC, map[string]string{"event_library": "libuv"})

	plan, err := b.Plan()
	require.NoError(t, err)

	names := make([]string, len(plan.Deps))
	for i, pkg := range plan.Deps {
		names[i] = pkg.Ref()
	}
	assert.Equal(t, []string{"openssl/3.2.0", "zlib/1.3.1", "libuv/1.48.0", "lua/5.4.6"}, names)
	assert.Contains(t, plan.Command.Args, "EVENT_LIB=libuv")
	assert.Contains(t, plan.Command.Args, "LUAMOD="+fx.dep("lua", "5.4.6", "include"))
	assert.Equal(t, []string{"-lssl"}, plan.LinkFlags.DynamicLibs)
	assert.Len(t, plan.LinkFlags.StaticLibs, 4)
}

func TestPlan_MissingLibDir(t *testing.T) {
	fx := newFixture(t)
	m := &deps.Manifest{Name: "zlib", Version: "1.3.1", LibDirs: []string{"lib64"}}
	require.NoError(t, m.Write(fx.dep("zlib", "1.3.1")))
	b := fx.builder(t, "aerospike-common", linuxGCC, nil)

	_, err := b.Build(context.Background())
	require.Error(t, err)
	var fsErr *linkflags.FilesystemError
	require.True(t, errors.As(err, &fsErr))
	assert.Equal(t, fx.dep("zlib", "1.3.1", "lib64"), fsErr.Dir)
	assert.Empty(t, fx.runner.cmds)
	assert.Empty(t, fx.fetcher.fetched)
}

func TestBuild_UnsupportedConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		settings recipe.Settings
	}{
		{"windows", recipe.Settings{OS: "Windows", Arch: "x86_64", Compiler: "gcc"}},
		{"msvc", recipe.Settings{OS: "Linux", Arch: "x86_64", Compiler: "msvc"}},
		{"arch", recipe.Settings{OS: "Linux", Arch: "sparc", Compiler: "gcc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			b := fx.builder(t, "aerospike-client-c", tt.settings, nil)

			_, err := b.Build(context.Background())
			assert.ErrorIs(t, err, toolchain.ErrUnsupportedConfiguration)
			assert.Empty(t, fx.runner.cmds)
			assert.Empty(t, fx.fetcher.fetched)
		})
	}
}

func TestBuild_PackagesAndManifest(t *testing.T) {
	fx := newFixture(t)
	fx.runner.outputs = []string{"libaerospike-common.so", "libaerospike-common.a"}
	b := fx.builder(t, "aerospike-common", linuxGCC, map[string]string{"shared": "true"})

	m, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, fx.runner.cmds, 1)
	assert.Equal(t, []string{"https://github.com/aerospike/aerospike-common/archive/refs/tags/1.7.4.tar.gz"}, fx.fetcher.fetched)
	assert.Equal(t, []string{"https://www.apache.org/licenses/LICENSE-2.0.txt"}, fx.fetcher.downloads)

	pkgDir := filepath.Join(fx.out, "aerospike-common", "1.7.4")
	assert.FileExists(t, filepath.Join(pkgDir, "lib", "libaerospike-common.so"))
	assert.NoFileExists(t, filepath.Join(pkgDir, "lib", "libaerospike-common.a"))
	assert.FileExists(t, filepath.Join(pkgDir, "include", "aerospike", "as_std.h"))
	assert.FileExists(t, filepath.Join(pkgDir, "licenses", "LICENSE.txt"))

	assert.Equal(t, []string{"openssl/3.2.0", "zlib/1.3.1"}, m.Requires)
	assert.Equal(t, map[string]string{"shared": "true"}, m.Options)
	assert.Equal(t, "x86_64", m.Settings["arch"])
	assert.Len(t, m.PackageID, 40)
	assert.NotEmpty(t, m.BuildID)

	written, err := deps.ReadManifest(pkgDir)
	require.NoError(t, err)
	assert.Equal(t, m, written)

	// the package can now be consumed as a dependency
	pkgs, err := deps.LocalResolver{Root: fx.out}.Resolve([]recipe.Requirement{{Name: "aerospike-common", Range: "[>=1.7 <2]"}})
	require.NoError(t, err)
	set, err := linkflags.New(linkflags.DefaultConfig()).Synthesize(deps.AsDependencies(pkgs))
	require.NoError(t, err)
	assert.Equal(t, []string{"-laerospike-common"}, set.DynamicLibs)
}

func TestBuild_RunnerFailure(t *testing.T) {
	fx := newFixture(t)
	fx.runner.err = errors.New("exit status 2")
	b := fx.builder(t, "aerospike-common", linuxGCC, nil)

	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 2")
	assert.NoDirExists(t, filepath.Join(fx.out, "aerospike-common"))
}

func TestPlan_DependencyDefines(t *testing.T) {
	fx := newFixture(t)
	m := &deps.Manifest{Name: "openssl", Version: "3.2.0", Libs: []string{"ssl", "crypto"}, Defines: []string{"OPENSSL_API_COMPAT=0x10100000L"}}
	require.NoError(t, m.Write(fx.dep("openssl", "3.2.0")))
	b := fx.builder(t, "aerospike-common", linuxGCC, map[string]string{"shared": "true"})

	plan, err := b.Plan()
	require.NoError(t, err)
	assert.Equal(t, "EXT_CFLAGS=-I"+fx.dep("openssl", "3.2.0", "include")+" -I"+fx.dep("zlib", "1.3.1", "include")+
		" -DOPENSSL_API_COMPAT=0x10100000L -m64", plan.Command.Args[1])
}

func TestInstall_OverlappingRules(t *testing.T) {
	src, pkg := t.TempDir(), t.TempDir()
	for _, f := range []struct{ path, body string }{
		{"src/include/aerospike/as_std.h", "client"},
		{"src/include/aerospike/as_log.h", "log"},
		{"modules/common/src/include/aerospike/as_std.h", "common"},
		{"modules/common/src/include/citrusleaf/cf_queue.h", "queue"},
	} {
		path := filepath.Join(src, filepath.FromSlash(f.path))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f.body), 0o644))
	}

	err := Install(src, pkg, []recipe.CopyRule{
		{Src: "src/include", Pattern: "**", Dst: "include"},
		{Src: "modules/common/src/include", Pattern: "**", Dst: "include"},
	})
	require.NoError(t, err)

	read := func(elem ...string) string {
		data, err := os.ReadFile(filepath.Join(append([]string{pkg, "include"}, elem...)...))
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "common", read("aerospike", "as_std.h"))
	assert.Equal(t, "log", read("aerospike", "as_log.h"))
	assert.Equal(t, "queue", read("citrusleaf", "cf_queue.h"))
}

func TestPackageID(t *testing.T) {
	m := &deps.Manifest{Name: "x", Version: "1.0", Settings: map[string]string{"os": "Linux"}, Options: map[string]string{"shared": "false"}}
	id := PackageID(m)
	assert.Equal(t, id, PackageID(m))

	m.Options["shared"] = "true"
	assert.NotEqual(t, id, PackageID(m))
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "make", Args: []string{"TARGET_BASE=target", "EXT_CFLAGS=-I/a -m64", "-C", "/src"}, Env: []string{"CC=gcc"}}
	assert.Equal(t, "CC=gcc make TARGET_BASE=target 'EXT_CFLAGS=-I/a -m64' -C /src", c.String())
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	var stdout, stderr bytes.Buffer
	r := &ExecRunner{Stdout: &stdout, Stderr: &stderr}

	err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo $FORGE_TEST_VALUE"},
		Dir:  t.TempDir(),
		Env:  []string{"FORGE_TEST_VALUE=built"},
	})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "RUN FORGE_TEST_VALUE=built sh -c 'echo $FORGE_TEST_VALUE'\n")
	assert.Contains(t, stdout.String(), "    built\n")

	err = r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	assert.Error(t, err)
}
