package deps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qobs-build/forge/internal/linkflags"
	"github.com/qobs-build/forge/internal/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
}

func reqs(t *testing.T, refs ...string) []recipe.Requirement {
	t.Helper()
	out := make([]recipe.Requirement, len(refs))
	for i, ref := range refs {
		req, err := recipe.ParseRequirement(ref)
		require.NoError(t, err)
		out[i] = req
	}
	return out
}

func TestResolve_PicksNewestInRange(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root,
		"openssl/1.1.1", "openssl/3.2.0", "openssl/4.0.0", "openssl/not-a-version",
		"zlib/1.2.13", "zlib/1.3.1",
	)

	pkgs, err := LocalResolver{Root: root}.Resolve(reqs(t, "zlib/[>=1.2.11 <2]", "openssl/[>=1.1 <4]"))
	require.NoError(t, err)
	require.Len(t, pkgs, 2)

	assert.Equal(t, "zlib/1.3.1", pkgs[0].Ref())
	assert.Equal(t, "openssl/3.2.0", pkgs[1].Ref())
	assert.Equal(t, filepath.Join(root, "openssl", "3.2.0"), pkgs[1].Root)
	assert.Equal(t, []string{filepath.Join(root, "openssl", "3.2.0", "include")}, pkgs[1].IncludeDirs())
	assert.Equal(t, []string{filepath.Join(root, "openssl", "3.2.0", "lib")}, pkgs[1].LibDirs())
}

func TestResolve_NotFound(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "lua/5.4.4")

	_, err := LocalResolver{Root: root}.Resolve(reqs(t, "lua/5.4.6"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = LocalResolver{Root: root}.Resolve(reqs(t, "libuv/[>=1.15.0 <2]"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenPackage_Manifest(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{
		Name:        "libev",
		Version:     "4.33",
		IncludeDirs: []string{"include", "/opt/ev/include"},
		LibDirs:     []string{"lib64"},
		Libs:        []string{"ev"},
		Defines:     []string{"EV_MULTIPLICITY=1"},
	}
	require.NoError(t, m.Write(dir))

	pkg, err := OpenPackage("libev", "4.33", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "include"), "/opt/ev/include"}, pkg.Includes)
	assert.Equal(t, []string{filepath.Join(dir, "lib64")}, pkg.Libs)
	assert.Equal(t, []string{"ev"}, pkg.LibNames)
	assert.Equal(t, []string{"EV_MULTIPLICITY=1"}, pkg.Defines)

	read, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, m, read)
}

func TestOpenPackage_BadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFilename), []byte("name = "), 0o644))

	_, err := OpenPackage("x", "1.0", dir)
	assert.Error(t, err)
}

func TestPackage_LinkFlags(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "zlib/1.3.1/lib", "openssl/3.2.0/lib")
	require.NoError(t, os.WriteFile(filepath.Join(root, "zlib/1.3.1/lib/libz.a"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "openssl/3.2.0/lib/libssl.so.3"), nil, 0o644))

	pkgs, err := LocalResolver{Root: root}.Resolve(reqs(t, "openssl/[>=1.1 <4]", "zlib/[>=1.2.11 <2]"))
	require.NoError(t, err)

	set, err := linkflags.New(linkflags.DefaultConfig()).Synthesize(AsDependencies(pkgs))
	require.NoError(t, err)
	sslLib := filepath.Join(root, "openssl/3.2.0/lib")
	zLib := filepath.Join(root, "zlib/1.3.1/lib")
	assert.Equal(t, "-L"+sslLib+" -L"+zLib+" -lssl "+filepath.Join(zLib, "libz.a"), set.String())
}

func TestDefineFlags(t *testing.T) {
	pkgs := []*Package{
		{Name: "libev", Defines: []string{"EV_MULTIPLICITY=1", "EV_COMPAT3=0"}},
		{Name: "zlib"},
		{Name: "lua", Defines: []string{"LUA_COMPAT_5_3"}},
	}
	assert.Equal(t, []string{"-DEV_MULTIPLICITY=1", "-DEV_COMPAT3=0", "-DLUA_COMPAT_5_3"}, DefineFlags(pkgs))
	assert.Empty(t, DefineFlags(nil))
}
