// forge build <recipe>
package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/qobs-build/forge/internal/builder"
	"github.com/qobs-build/forge/internal/index"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
	"github.com/spf13/cobra"
)

var (
	flagSettings  []string
	flagOptions   []string
	flagProfile   string
	flagVersion   string
	flagIndex     string
	flagDeps      string
	flagOut       string
	flagWork      string
	flagBuildType EnumValue = NewEnumValue("Release", map[string]string{
		"Debug":          "No optimizations, debug info",
		"Release":        "Optimized (default)",
		"RelWithDebInfo": "Optimized with debug info",
		"MinSizeRel":     "Optimized for size",
	})
)

// recipeDir finds a recipe either as a directory or by name in the index
func recipeDir(ctx context.Context, arg string) string {
	if _, err := os.Stat(filepath.Join(arg, recipe.Filename)); err == nil {
		return arg
	}

	var (
		idx *index.Index
		err error
	)
	if flagIndex != "" {
		idx, err = index.Open(flagIndex)
	} else {
		idx, err = index.Global(ctx)
	}
	if err != nil {
		msg.Fatal("failed to load recipe index: %v", err)
	}
	dir, err := idx.Lookup(arg)
	if err != nil {
		msg.Fatal("%v", err)
	}
	return dir
}

// loadRecipe resolves a recipe for the profile and the -s/-o/--build-type flags
func loadRecipe(cmd *cobra.Command, arg string) *recipe.Recipe {
	dir := recipeDir(cmd.Context(), arg)

	prof, err := recipe.LoadProfile(flagProfile)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if cmd.Flags().Changed("build-type") {
		prof.Settings.BuildType = flagBuildType.Value()
	}
	settings, err := parseKeyValues(flagSettings)
	if err != nil {
		msg.Fatal("bad setting: %v", err)
	}
	for _, key := range sortedKeys(settings) {
		if !prof.Settings.Set(key, settings[key]) {
			msg.Fatal("unknown setting %q (want os, arch, compiler or build_type)", key)
		}
	}

	// profile options are scoped by recipe name, which is its directory name
	overrides := prof.OptionsFor(filepath.Base(filepath.Clean(dir)))
	cliOptions, err := parseKeyValues(flagOptions)
	if err != nil {
		msg.Fatal("bad option: %v", err)
	}
	for k, v := range cliOptions {
		overrides[k] = v
	}

	r, err := recipe.Load(dir, prof.Settings, overrides, flagVersion)
	if err != nil {
		msg.Fatal("%v", err)
	}
	return r
}

func doBuild(cmd *cobra.Command, args []string) {
	r := loadRecipe(cmd, args[0])

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	b := builder.New(r, flagWork, flagOut, flagDeps)
	m, err := b.Build(ctx)
	if err != nil {
		msg.Fatal("%v", err)
	}
	msg.Info("package_id %s", m.PackageID)
}

var buildCmd = &cobra.Command{
	Use:   "build <recipe>",
	Short: "Build and package a recipe",
	Long: `Build and package a recipe. <recipe> is a recipe directory or a name from the recipe index.
Dependencies must already be packaged under --deps.`,
	Args: cobra.ExactArgs(1),
	Run:  doBuild,
}

func addRecipeFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&flagSettings, "setting", "s", nil, "Override a setting, key=value")
	cmd.Flags().StringArrayVarP(&flagOptions, "option", "o", nil, "Set a recipe option, key=value")
	cmd.Flags().StringVarP(&flagProfile, "profile", "p", "", "Profile file with settings and options")
	cmd.Flags().StringVar(&flagVersion, "version", "", "Recipe version (default: newest)")
	cmd.Flags().StringVar(&flagIndex, "index", "", "Local recipe index directory (default: the global index)")
	cmd.Flags().VarP(&flagBuildType, "build-type", "b", "Build type, one of "+flagBuildType.HelpString())
	cmd.RegisterFlagCompletionFunc("build-type", flagBuildType.CompletionFunc())
}

func init() {
	// forge build subcommand
	rootCmd.AddCommand(buildCmd)
	addRecipeFlags(buildCmd)
	buildCmd.Flags().StringVar(&flagDeps, "deps", "packages", "Directory of packaged dependencies")
	buildCmd.Flags().StringVar(&flagOut, "out", "packages", "Directory packages are written to")
	buildCmd.Flags().StringVar(&flagWork, "work", "build", "Directory for sources and build trees")
}
