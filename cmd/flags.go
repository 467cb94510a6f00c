// forge flags <requirement>..., forge archflags <compiler> <arch>
package cmd

import (
	"fmt"
	"strings"

	"github.com/qobs-build/forge/internal/deps"
	"github.com/qobs-build/forge/internal/linkflags"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
	"github.com/qobs-build/forge/internal/toolchain"
	"github.com/spf13/cobra"
)

var (
	flagFlagsDeps string
	flagCflags    bool
)

func doFlags(cmd *cobra.Command, args []string) {
	reqs := make([]recipe.Requirement, 0, len(args))
	for _, arg := range args {
		req, err := recipe.ParseRequirement(arg)
		if err != nil {
			msg.Fatal("%v", err)
		}
		reqs = append(reqs, req)
	}

	pkgs, err := deps.LocalResolver{Root: flagFlagsDeps}.Resolve(reqs)
	if err != nil {
		msg.Fatal("%v", err)
	}
	depList := deps.AsDependencies(pkgs)

	if flagCflags {
		cflags := append(linkflags.IncludeFlags(depList), deps.DefineFlags(pkgs)...)
		fmt.Println(strings.Join(cflags, " "))
		return
	}
	set, err := linkflags.New(linkflags.DefaultConfig()).Synthesize(depList)
	if err != nil {
		msg.Fatal("%v", err)
	}
	fmt.Println(set.String())
}

func doArchFlags(cmd *cobra.Command, args []string) {
	flags, err := toolchain.ArchFlags(args[0], args[1])
	if err != nil {
		msg.Fatal("%v", err)
	}
	fmt.Println(flags)
}

var flagsCmd = &cobra.Command{
	Use:   "flags <name/range>...",
	Short: "Print linker flags for packaged dependencies",
	Long: `Print linker flags for packaged dependencies: -L for every library directory,
then -l for every shared library, then the paths of static archives.`,
	Args: cobra.MinimumNArgs(1),
	Run:  doFlags,
}

var archFlagsCmd = &cobra.Command{
	Use:   "archflags <compiler> <arch>",
	Short: "Print the compiler flags that select an architecture",
	Args:  cobra.ExactArgs(2),
	Run:   doArchFlags,
}

func init() {
	// forge flags subcommand
	rootCmd.AddCommand(flagsCmd)
	flagsCmd.Flags().StringVar(&flagFlagsDeps, "deps", "packages", "Directory of packaged dependencies")
	flagsCmd.Flags().BoolVar(&flagCflags, "cflags", false, "Print -I and -D flags instead")

	// forge archflags subcommand
	rootCmd.AddCommand(archFlagsCmd)
}
