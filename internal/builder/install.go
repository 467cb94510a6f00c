package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/qobs-build/forge/internal/recipe"
	"golang.org/x/sync/errgroup"
)

type copyJob struct {
	src, dst string
}

// Install copies the files matched by rules from srcDir into pkgDir. Patterns
// are doublestar globs relative to <srcDir>/<rule.src>; the matched relative
// path is kept under <pkgDir>/<rule.dst>. Symlinks are copied as symlinks.
func Install(srcDir, pkgDir string, rules []recipe.CopyRule) error {
	var jobs []copyJob
	// a destination written by several rules gets the file of the last one
	byDst := make(map[string]int)
	for _, rule := range rules {
		base := filepath.Join(srcDir, rule.Src)
		matches, err := doublestar.Glob(os.DirFS(base), rule.Pattern, doublestar.WithFilesOnly())
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", rule.Pattern, err)
		}
		if len(matches) == 0 {
			msg.Debug("nothing matches %s in %s", rule.Pattern, base)
		}
		for _, match := range matches {
			job := copyJob{
				src: filepath.Join(base, filepath.FromSlash(match)),
				dst: filepath.Join(pkgDir, rule.Dst, filepath.FromSlash(match)),
			}
			if i, ok := byDst[job.dst]; ok {
				msg.Debug("%s overrides %s", job.src, jobs[i].src)
				jobs[i] = job
				continue
			}
			byDst[job.dst] = len(jobs)
			jobs = append(jobs, job)
		}
	}
	return runJobs(jobs, copyPath, runtime.NumCPU())
}

// runJobs runs jobs in parallel
func runJobs[T any](jobs []T, jobfunc func(job T) error, limit int) error {
	if len(jobs) == 0 {
		return nil
	}

	eg, _ := errgroup.WithContext(context.Background())
	eg.SetLimit(limit)

	for _, job := range jobs {
		eg.Go(func() error {
			return jobfunc(job)
		})
	}

	return eg.Wait()
}

func copyPath(job copyJob) error {
	if err := os.MkdirAll(filepath.Dir(job.dst), 0o755); err != nil {
		return err
	}

	info, err := os.Lstat(job.src)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(job.src)
		if err != nil {
			return err
		}
		os.Remove(job.dst)
		return os.Symlink(target, job.dst)
	}

	in, err := os.Open(job.src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(job.dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", job.src, err)
	}
	return out.Close()
}
