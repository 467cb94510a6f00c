// forge index
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qobs-build/forge/internal/index"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
	"github.com/spf13/cobra"
)

// ensureLocalIndex loads forge_index.json from cwd or fails
func ensureLocalIndex() *index.Index {
	cwd, err := os.Getwd()
	if err != nil {
		msg.Fatal("could not get current directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cwd, index.IndexFilename)); os.IsNotExist(err) {
		msg.Fatal("no %s found in current directory (must run inside a recipe index; create it if you need a new index)", index.IndexFilename)
	}

	idx, err := index.Open(cwd)
	if err != nil {
		msg.Fatal("failed to parse index: %v", err)
	}
	return idx
}

func doIndexAdd(name, dir string) {
	idx := ensureLocalIndex()

	if _, err := os.Stat(filepath.Join(idx.Path(), dir, recipe.Filename)); err != nil {
		msg.Fatal("%s is not a recipe directory: %v", dir, err)
	}
	if idx.HasRecipe(name) {
		msg.Warn("overwriting existing recipe %s", name)
	}
	idx.SetRecipe(name, dir)

	if err := idx.Save(); err != nil {
		msg.Fatal("failed to save index: %v", err)
	}
	msg.Info("added recipe %s -> %s", name, dir)
}

func doIndexRemove(name string) {
	idx := ensureLocalIndex()

	if !idx.RemoveRecipe(name) {
		msg.Warn("recipe %s not found", name)
		return
	}
	if err := idx.Save(); err != nil {
		msg.Fatal("failed to save index: %v", err)
	}
	msg.Info("removed recipe %s", name)
}

func doIndexUpdate(cmd *cobra.Command) {
	if _, err := index.UpdateGlobal(cmd.Context()); err != nil {
		msg.Fatal("failed to update global index: %v", err)
	}
	msg.Info("updated global index successfully")
}

func doIndexSearch(cmd *cobra.Command, term string) {
	idx, err := index.Global(cmd.Context())
	if err != nil {
		msg.Fatal("failed to load global index: %v", err)
	}

	names := idx.Search(term)
	for i, name := range names {
		fmt.Printf("%d. %s -> %s\n", i+1, name, idx.Recipes[name])
	}

	if len(names) == 0 {
		msg.Warn("no matches found for %q", term)
	} else {
		msg.Info("found %d matches for %q", len(names), term)
	}
}

var indexAddCmd = &cobra.Command{
	Use:   "add <name> <dir>",
	Short: "Add a recipe to the local index",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		doIndexAdd(args[0], args[1])
	},
}

var indexRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a recipe from the local index",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doIndexRemove(args[0])
	},
}

var indexUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the global cached index",
	Run: func(cmd *cobra.Command, args []string) {
		doIndexUpdate(cmd)
	},
}

var indexSearchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search the global index for recipes",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		term := ""
		if len(args) > 0 {
			term = args[0]
		}
		doIndexSearch(cmd, term)
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the recipe index",
}

func init() {
	// forge index subcommand
	indexCmd.AddCommand(indexUpdateCmd)
	indexCmd.AddCommand(indexAddCmd)
	indexCmd.AddCommand(indexRemoveCmd)
	indexCmd.AddCommand(indexSearchCmd)
	rootCmd.AddCommand(indexCmd)
}
