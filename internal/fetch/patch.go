package fetch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var ErrPatchFailed = errors.New("patch does not apply")

// ApplyPatch applies a diff-match-patch text patch to the file at path.
// Every hunk has to apply.
func ApplyPatch(path, patchText string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		return fmt.Errorf("malformed patch for %s: %w", path, err)
	}
	patched, results := dmp.PatchApply(patches, string(data))
	for i, ok := range results {
		if !ok {
			return fmt.Errorf("%w: hunk %d of %s", ErrPatchFailed, i+1, path)
		}
	}

	return os.WriteFile(path, []byte(patched), 0o644)
}

// ApplyPatches applies the recipe's patches, in order, to the sources in srcDir.
// patch_file paths are relative to the recipe directory, file paths to srcDir.
func ApplyPatches(recipeDir, srcDir string, patches []recipe.Patch) error {
	for _, p := range patches {
		text, err := os.ReadFile(filepath.Join(recipeDir, p.PatchFile))
		if err != nil {
			return fmt.Errorf("read patch: %w", err)
		}
		if p.Description != "" {
			msg.Info("patching %s: %s", p.File, p.Description)
		} else {
			msg.Info("patching %s", p.File)
		}
		if err := ApplyPatch(filepath.Join(srcDir, p.File), string(text)); err != nil {
			return fmt.Errorf("%s: %w", p.PatchFile, err)
		}
	}
	return nil
}
