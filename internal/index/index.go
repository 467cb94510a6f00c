package index

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
)

const (
	IndexFilename = "forge_index.json"
	indexRepoURL  = "https://github.com/qobs-build/forge-recipes.git"
	indexBranch   = "main"
)

var ErrUnknownRecipe = errors.New("recipe not found in index")

type Index struct {
	// on windows: %LocalAppData%/forge/index
	// on linux: ~/.cache/forge/index
	basePath string
	// recipe name -> recipe directory, relative to the index
	Recipes map[string]string
}

func ParseIndex(rdr io.Reader, basePath string) (*Index, error) {
	var recipes map[string]string
	if err := json.NewDecoder(bufio.NewReader(rdr)).Decode(&recipes); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", IndexFilename, err)
	}
	return &Index{Recipes: recipes, basePath: basePath}, nil
}

func (idx *Index) Path() string { return idx.basePath }

func (idx *Index) Save() error {
	f, err := os.Create(filepath.Join(idx.basePath, IndexFilename))
	if err != nil {
		return err
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	enc := json.NewEncoder(bufw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(idx.Recipes); err != nil {
		return err
	}
	return bufw.Flush()
}

// FetchIndex clones the recipe index into basePath, or pulls it if it's
// already there
func FetchIndex(ctx context.Context, basePath string) (*Index, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	progress := &msg.IndentWriter{Indent: "    ", W: msg.Stdout}

	if _, err := os.Stat(filepath.Join(basePath, ".git")); errors.Is(err, os.ErrNotExist) {
		msg.Info("fetching recipe index")
		_, err := git.PlainCloneContext(ctx, basePath, &git.CloneOptions{
			URL:           indexRepoURL,
			ReferenceName: plumbing.NewBranchReferenceName(indexBranch),
			SingleBranch:  true,
			Depth:         1,
			Progress:      progress,
		})
		if err != nil {
			return nil, err
		}
	} else {
		repo, err := git.PlainOpen(basePath)
		if err != nil {
			return nil, err
		}
		w, err := repo.Worktree()
		if err != nil {
			return nil, err
		}
		msg.Info("updating recipe index")
		err = w.PullContext(ctx, &git.PullOptions{
			RemoteName:    "origin",
			ReferenceName: plumbing.NewBranchReferenceName(indexBranch),
			SingleBranch:  true,
			Depth:         1,
			Progress:      progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil, err
		}
	}

	return Open(basePath)
}

// Open reads the index file in basePath, e.g. a checkout of the recipes repo
func Open(basePath string) (*Index, error) {
	f, err := os.Open(filepath.Join(basePath, IndexFilename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseIndex(f, basePath)
}

func LoadOrFetchIndex(ctx context.Context, basePath string) (*Index, error) {
	if _, err := os.Stat(filepath.Join(basePath, IndexFilename)); err == nil {
		return Open(basePath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return FetchIndex(ctx, basePath)
}

// GlobalPath is where the shared index is cached
func GlobalPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "forge", "index"), nil
}

func Global(ctx context.Context) (*Index, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return LoadOrFetchIndex(ctx, path)
}

func UpdateGlobal(ctx context.Context) (*Index, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return FetchIndex(ctx, path)
}

// Lookup returns the absolute directory of a recipe
func (idx *Index) Lookup(name string) (string, error) {
	rel, ok := idx.Recipes[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRecipe, name)
	}
	dir := rel
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(idx.basePath, filepath.FromSlash(rel))
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(dir, recipe.Filename)); err != nil {
		return "", fmt.Errorf("index entry %s is broken: %w", name, err)
	}
	return dir, nil
}

// Search returns the sorted names containing query, case-insensitively. An
// empty query matches everything.
func (idx *Index) Search(query string) []string {
	query = strings.ToLower(query)
	var names []string
	for name := range idx.Recipes {
		if strings.Contains(strings.ToLower(name), query) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (idx *Index) SetRecipe(name, path string) {
	if idx.Recipes == nil {
		idx.Recipes = make(map[string]string)
	}
	idx.Recipes[name] = filepath.ToSlash(path)
}

func (idx *Index) HasRecipe(name string) bool {
	_, exists := idx.Recipes[name]
	return exists
}

func (idx *Index) RemoveRecipe(name string) bool {
	if _, ok := idx.Recipes[name]; ok {
		delete(idx.Recipes, name)
		return true
	}
	return false
}
