package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-getter"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
)

// Fetcher places recipe sources into a source directory
type Fetcher struct {
	// CacheDir keeps downloaded archives between builds
	CacheDir string
	// Quiet disables progress output
	Quiet bool
}

// Fetch gets src for version into dst. A non-empty dst is assumed to hold the
// sources already.
func (f *Fetcher) Fetch(ctx context.Context, src recipe.Source, version, dst string) error {
	if present, err := nonEmptyDir(dst); err != nil {
		return err
	} else if present {
		msg.Info("using existing sources in %s", dst)
		return nil
	}

	if src.IsGit() {
		if src.Commit == "" {
			msg.Warn("%s is not pinned to a commit", src.URL)
		}
		opts := GitOptions{Tag: version, Commit: src.Commit, Submodules: src.Submodules}
		if !f.Quiet {
			opts.Progress = &msg.IndentWriter{Indent: "    ", W: os.Stdout}
		}
		msg.Info("cloning %s (%s)", src.URL, version)
		if err := cloneGitRepo(ctx, src.URL, dst, opts); err != nil {
			os.RemoveAll(dst)
			return fmt.Errorf("failed to clone %s: %w", src.URL, err)
		}
		return nil
	}

	if src.Sha256 == "" {
		msg.Warn("%s is not pinned by a sha256 checksum", src.URL)
	}
	cacheDir := f.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(filepath.Dir(dst), "_downloads")
	}
	archive := filepath.Join(cacheDir, archiveName(src.URL))
	if _, err := os.Stat(archive); os.IsNotExist(err) {
		msg.Info("downloading %s", src.URL)
		if err := Download(ctx, src.URL, archive, src.Sha256, f.tracker()); err != nil {
			return err
		}
	}

	if err := Extract(archive, dst, src.ShouldStripRoot()); err != nil {
		os.RemoveAll(dst)
		return fmt.Errorf("failed to extract %s: %w", archive, err)
	}
	return nil
}

func (f *Fetcher) tracker() getter.ProgressTracker {
	if f.Quiet {
		return nil
	}
	return &msg.DownloadProgress{Indent: 4, W: os.Stdout}
}

// DownloadFile fetches a single file, such as a license text, into dst
func (f *Fetcher) DownloadFile(ctx context.Context, src, dst, sha256 string) error {
	return Download(ctx, src, dst, sha256, f.tracker())
}

func nonEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}
