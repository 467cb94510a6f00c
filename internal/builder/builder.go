package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qobs-build/forge/internal/deps"
	"github.com/qobs-build/forge/internal/fetch"
	"github.com/qobs-build/forge/internal/linkflags"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
	"github.com/qobs-build/forge/internal/toolchain"
)

var (
	errNoBuildCommand = errors.New("recipe has no [build] command")
)

const patchedMarker = ".patched"

// Resolver supplies the packages a recipe requires, in requirement order
type Resolver interface {
	Resolve(reqs []recipe.Requirement) ([]*deps.Package, error)
}

// SourceFetcher places sources on disk
type SourceFetcher interface {
	Fetch(ctx context.Context, src recipe.Source, version, dst string) error
	DownloadFile(ctx context.Context, src, dst, sha256 string) error
}

// DepEnv is what build expressions see of a dependency, as deps.<name>
type DepEnv struct {
	Version string `expr:"version"`
	Root    string `expr:"root"`
	Include string   `expr:"include"`
	Lib     string   `expr:"lib"`
	Libs    []string `expr:"libs"`
	Defines []string `expr:"defines"`
}

// BuildEnv is the environment [build] strings are expanded with
type BuildEnv struct {
	recipe.Env
	SourceDir    string            `expr:"source_dir"`
	PackageDir   string            `expr:"package_dir"`
	LDFlags      string            `expr:"ldflags"`
	ArchFlags    string            `expr:"arch_flags"`
	IncludeFlags []string          `expr:"include_flags"`
	Cflags       []string          `expr:"cflags"`
	Deps         map[string]DepEnv `expr:"deps"`
}

// Plan is everything decided before the external build runs
type Plan struct {
	Deps      []*deps.Package
	LinkFlags linkflags.LinkFlagSet
	ArchFlags string
	Command   Command
	SourceDir string
	BuildDir  string
	// PackageDir is <out>/<name>/<version>
	PackageDir string
}

type Builder struct {
	Recipe *recipe.Recipe
	// WorkDir holds sources, <work>/<name>/<version>/src
	WorkDir  string
	OutDir   string
	Resolver Resolver
	Fetcher  SourceFetcher
	Runner   Runner
	Linker   *linkflags.Synthesizer
}

// New returns a Builder that resolves dependencies from packages under depsRoot
// and runs the build on the host
func New(r *recipe.Recipe, workDir, outDir, depsRoot string) *Builder {
	return &Builder{
		Recipe:   r,
		WorkDir:  workDir,
		OutDir:   outDir,
		Resolver: deps.LocalResolver{Root: depsRoot},
		Fetcher:  &fetch.Fetcher{CacheDir: filepath.Join(workDir, "_downloads")},
		Runner:   &ExecRunner{},
		Linker:   linkflags.New(linkflags.DefaultConfig()),
	}
}

// Plan validates the configuration, resolves dependencies and works out the
// build command. Unsupported configurations fail here, before anything runs.
func (b *Builder) Plan() (*Plan, error) {
	r := b.Recipe
	if err := r.CheckConfiguration(); err != nil {
		return nil, err
	}
	archFlags, err := toolchain.ArchFlags(r.Settings.Compiler, r.Settings.Arch)
	if err != nil {
		return nil, err
	}

	pkgs, err := b.Resolver.Resolve(r.Requires)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve requirements of %s: %w", r.Ref(), err)
	}
	depList := deps.AsDependencies(pkgs)

	linkFlags, err := b.Linker.Synthesize(depList)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Deps:       pkgs,
		LinkFlags:  linkFlags,
		ArchFlags:  archFlags,
		SourceDir:  filepath.Join(b.WorkDir, r.Package.Name, r.Version, "src"),
		PackageDir: filepath.Join(b.OutDir, r.Package.Name, r.Version),
	}
	plan.BuildDir = filepath.Dir(plan.SourceDir)

	env := BuildEnv{
		Env:          r.Env(),
		SourceDir:    plan.SourceDir,
		PackageDir:   plan.PackageDir,
		LDFlags:      linkFlags.String(),
		ArchFlags:    archFlags,
		IncludeFlags: linkflags.IncludeFlags(depList),
		Deps:         make(map[string]DepEnv, len(pkgs)),
	}
	for _, pkg := range pkgs {
		env.Deps[pkg.Name] = DepEnv{
			Version: pkg.Version,
			Root:    pkg.Root,
			Include: first(pkg.Includes),
			Lib:     first(pkg.Libs),
			Libs:    pkg.LibNames,
			Defines: pkg.Defines,
		}
	}

	env.Cflags = append(env.Cflags, env.IncludeFlags...)
	env.Cflags = append(env.Cflags, deps.DefineFlags(pkgs)...)
	env.Cflags = append(env.Cflags, strings.Fields(archFlags)...)
	for _, flag := range r.Build.Cflags {
		flag, err := recipe.EvaluateString(flag, env)
		if err != nil {
			return nil, fmt.Errorf("[build] cflags: %w", err)
		}
		env.Cflags = append(env.Cflags, flag)
	}

	if plan.Command, err = expandCommand(r.Build, env, plan.SourceDir); err != nil {
		return nil, err
	}
	return plan, nil
}

func expandCommand(build recipe.BuildSection, env BuildEnv, dir string) (Command, error) {
	if build.Command == "" {
		return Command{}, errNoBuildCommand
	}

	name, err := recipe.EvaluateString(build.Command, env)
	if err != nil {
		return Command{}, fmt.Errorf("[build] command: %w", err)
	}
	cmd := Command{Name: name, Dir: dir}
	for _, arg := range build.Args {
		arg, err := recipe.EvaluateString(arg, env)
		if err != nil {
			return Command{}, fmt.Errorf("[build] args: %w", err)
		}
		cmd.Args = append(cmd.Args, arg)
	}
	for _, key := range sortedKeys(build.Env) {
		val, err := recipe.EvaluateString(build.Env[key], env)
		if err != nil {
			return Command{}, fmt.Errorf("[build] env %s: %w", key, err)
		}
		cmd.Env = append(cmd.Env, key+"="+val)
	}
	return cmd, nil
}

// Build fetches and patches the sources, runs the build command and packages
// the result
func (b *Builder) Build(ctx context.Context) (*deps.Manifest, error) {
	r := b.Recipe
	plan, err := b.Plan()
	if err != nil {
		return nil, err
	}
	for _, pkg := range plan.Deps {
		msg.Debug("%s requires %s (%s)", r.Ref(), pkg.Ref(), pkg.Root)
	}

	if err := b.Fetcher.Fetch(ctx, r.Source, r.Version, plan.SourceDir); err != nil {
		return nil, err
	}
	if err := b.applyPatches(plan); err != nil {
		return nil, err
	}

	msg.Info("building %s", r.Ref())
	if err := b.Runner.Run(ctx, plan.Command); err != nil {
		return nil, fmt.Errorf("build of %s failed: %w", r.Ref(), err)
	}

	if err := os.RemoveAll(plan.PackageDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(plan.PackageDir, 0o755); err != nil {
		return nil, err
	}
	if err := Install(plan.SourceDir, plan.PackageDir, r.Install.Copy); err != nil {
		return nil, fmt.Errorf("packaging %s: %w", r.Ref(), err)
	}
	for _, dl := range r.Install.Download {
		if err := b.Fetcher.DownloadFile(ctx, dl.URL, filepath.Join(plan.PackageDir, dl.Dst), dl.Sha256); err != nil {
			return nil, fmt.Errorf("packaging %s: %w", r.Ref(), err)
		}
	}

	m := NewManifest(r, plan.Deps)
	if err := m.Write(plan.PackageDir); err != nil {
		return nil, err
	}
	msg.Info("packaged %s into %s", r.Ref(), plan.PackageDir)
	return m, nil
}

// applyPatches patches a source tree once
func (b *Builder) applyPatches(plan *Plan) error {
	if len(b.Recipe.Patches) == 0 {
		return nil
	}
	marker := filepath.Join(plan.BuildDir, patchedMarker)
	if _, err := os.Stat(marker); err == nil {
		return nil
	}
	if err := fetch.ApplyPatches(b.Recipe.Dir, plan.SourceDir, b.Recipe.Patches); err != nil {
		return err
	}
	return os.WriteFile(marker, nil, 0o644)
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
