// forge new <name>
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/forge/internal/index"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "forge"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// newRecipe writes a recipe skeleton into dir
func newRecipe(dir, name, version string) {
	mkdir(dir)

	writefile(`[package]
name = "`+name+`"
description = ""
homepage = ""
license = ""
type = "library"
settings = ["os", "arch", "compiler", "build_type"]

[options.shared]
values = [true, false]
default = false

[options.fPIC]
values = [true, false]
default = true
remove_if = "options.shared == true"

[requirements]
requires = []

[build]
command = "make"
args = ["CFLAGS={{ join(cflags, ' ') }}", "-C", "{{ source_dir }}"]

[build.'options.shared == true']
args = ["LDFLAGS={{ ldflags }}"]

[build.'options.fPIC == true']
cflags = ["-fPIC"]

[install]
copy = [{ src = "include", pattern = "**", dst = "include" }]

[install.'options.shared == true']
copy = [{ src = ".", pattern = "lib/*.so*" }]

[install.'options.shared == false']
copy = [{ src = ".", pattern = "lib/*.a" }]

[info]
libs = ["`+strings.TrimPrefix(name, "lib")+`"]
`, dir, recipe.Filename)

	writefile(`sources:
  "`+version+`":
    url: ""
    sha256: ""
    strip_root: true
# patches are diff-match-patch text (diffmatchpatch PatchToText), not unified diffs
# patches:
#   "`+version+`":
#     - patch_file: "patches/0001-fix.patch"
#       file: "Makefile"
#       patch_description: ""
`, dir, recipe.SourcesFilename)

	// register it if we're inside an index
	parent := filepath.Dir(filepath.Clean(dir))
	if idx, err := index.Open(parent); err == nil {
		rel, err := filepath.Rel(parent, dir)
		if err != nil {
			msg.Fatal("%v", err)
		}
		if !idx.HasRecipe(name) {
			idx.SetRecipe(name, rel)
			if err := idx.Save(); err != nil {
				msg.Fatal("failed to save index: %v", err)
			}
			msg.Info("added %s to %s", name, filepath.Join(parent, index.IndexFilename))
		}
	}

	fmt.Printf("Fill in the source URL in %s, then run %s.\n",
		filepath.ToSlash(filepath.Join(dir, recipe.SourcesFilename)),
		color.HiCyanString(getProgramName()+" build "+dir))
}

var flagNewVersion string

var newCmd = &cobra.Command{
	Use:   "new <path>",
	Short: "Create a new recipe in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		newRecipe(args[0], filepath.Base(filepath.Clean(args[0])), flagNewVersion)
	},
}

func init() {
	// forge new subcommand
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringVar(&flagNewVersion, "version", "1.0.0", "First version of the recipe")
}
