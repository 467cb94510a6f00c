// forge [command]
package cmd

import (
	"fmt"
	"os"

	"github.com/qobs-build/forge/internal/msg"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Build native library recipes",
	Long: `forge fetches, patches, builds and packages native C libraries from recipes.
Packages land in <out>/<name>/<version> with a package.toml describing them.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		msg.Verbose = flagVerbose
	},
}

var flagVerbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print debug messages")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
