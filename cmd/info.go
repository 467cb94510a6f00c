// forge info <recipe>
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
	"github.com/spf13/cobra"
)

func formatValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if s, ok := v.(string); ok {
			parts[i] = fmt.Sprintf("%q", s)
		} else {
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, ", ")
}

func doInfo(cmd *cobra.Command, args []string) {
	r := loadRecipe(cmd, args[0])

	sources, err := recipe.ParseSourcesFile(filepath.Join(r.Dir, recipe.SourcesFilename))
	if err != nil {
		msg.Fatal("%v", err)
	}

	fmt.Printf("%s %s\n", color.HiCyanString(r.Ref()), r.Package.Description)
	if r.Package.Homepage != "" {
		fmt.Printf("  homepage: %s\n", r.Package.Homepage)
	}
	if r.Package.License != "" {
		fmt.Printf("  license:  %s\n", r.Package.License)
	}
	fmt.Printf("  versions: %s\n", strings.Join(sources.Versions(), ", "))
	fmt.Printf("  source:   %s\n", r.Source.URL)
	fmt.Printf("  settings: os=%s arch=%s compiler=%s build_type=%s\n",
		r.Settings.OS, r.Settings.Arch, r.Settings.Compiler, r.Settings.BuildType)

	fmt.Println("  options:")
	for _, name := range r.OptionNames() {
		def, _ := r.OptionDef(name)
		val, ok := r.Options[name]
		current := fmt.Sprint(val)
		if !ok {
			current = color.HiBlackString("removed")
		}
		fmt.Printf("    %s = %s [%s]", name, current, formatValues(def.Values))
		if def.Help != "" {
			fmt.Printf(" %s", color.HiBlackString(def.Help))
		}
		fmt.Println()
	}

	if len(r.Requires) > 0 {
		fmt.Println("  requires:")
		for _, req := range r.Requires {
			fmt.Printf("    %s\n", req)
		}
	}

	if err := r.CheckConfiguration(); err != nil {
		msg.Warn("%v", err)
	}
}

var infoCmd = &cobra.Command{
	Use:   "info <recipe>",
	Short: "Show a recipe resolved for the current configuration",
	Args:  cobra.ExactArgs(1),
	Run:   doInfo,
}

func init() {
	// forge info subcommand
	rootCmd.AddCommand(infoCmd)
	addRecipeFlags(infoCmd)
}
