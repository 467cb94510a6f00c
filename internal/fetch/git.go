package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

var depShortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://sr.ht/",
	"cb:": "https://codeberg.org/",
}

const gitPrefix = "git:"

var (
	ErrCommitMismatch = errors.New("checked out commit does not match")
)

// expandGitURL resolves the `git:` prefix and host shortcuts such as gh:aerospike/aerospike-client-c
func expandGitURL(dep string) string {
	if strings.HasPrefix(dep, gitPrefix) {
		return dep[len(gitPrefix):]
	}
	for shortcut, url := range depShortcuts {
		if strings.HasPrefix(dep, shortcut) {
			return url + dep[len(shortcut):]
		}
	}
	return dep
}

type gitURL struct {
	cleanURL    string
	branch      string
	commitOrTag string
}

// someone/something@master#0.1.0
// someone/something@feature-branch#12345abc
// someone/something#12345abc
func parseGitURL(rawURL string) (res gitURL) {
	parts := strings.SplitN(rawURL, "#", 2)
	baseURL := parts[0]
	if len(parts) == 2 {
		res.commitOrTag = parts[1]
	}

	parts = strings.SplitN(baseURL, "@", 2)
	res.cleanURL = parts[0]
	if len(parts) == 2 {
		res.branch = parts[1]
	}

	if !strings.HasSuffix(res.cleanURL, ".git") {
		res.cleanURL += ".git"
	}

	return
}

// GitOptions describe which revision of a repository to check out
type GitOptions struct {
	// Tag is cloned shallowly when set, e.g. the recipe version
	Tag        string
	Commit     string
	Submodules bool
	Progress   io.Writer
}

// cloneGitRepo clones a Git remote into the specified directory
func cloneGitRepo(ctx context.Context, url, toWhere string, opts GitOptions) error {
	parsedURL := parseGitURL(expandGitURL(url))

	cloneOptions := &git.CloneOptions{
		URL:      parsedURL.cleanURL,
		Progress: opts.Progress,
	}
	if opts.Submodules {
		cloneOptions.RecurseSubmodules = git.DefaultSubmoduleRecursionDepth
	}

	switch {
	case parsedURL.branch != "":
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(parsedURL.branch)
		cloneOptions.SingleBranch = true
	case opts.Tag != "" && parsedURL.commitOrTag == "":
		cloneOptions.ReferenceName = plumbing.NewTagReferenceName(opts.Tag)
		cloneOptions.SingleBranch = true
	}

	if parsedURL.commitOrTag == "" {
		cloneOptions.Depth = 1 // we can do a shallow clone of the latest commit
	}

	repo, err := git.PlainCloneContext(ctx, toWhere, cloneOptions)
	if err != nil {
		return err
	}

	if parsedURL.commitOrTag != "" {
		w, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("could not get worktree: %w", err)
		}

		revision := parsedURL.commitOrTag
		hash, err := repo.ResolveRevision(plumbing.Revision(revision))
		if err != nil {
			return fmt.Errorf("could not resolve revision `%s`: %w", revision, err)
		}

		err = w.Checkout(&git.CheckoutOptions{
			Hash:  *hash,
			Force: true,
		})
		if err != nil {
			return fmt.Errorf("failed to checkout `%s`: %w", revision, err)
		}
	}

	if opts.Commit != "" {
		head, err := repo.Head()
		if err != nil {
			return fmt.Errorf("could not read HEAD: %w", err)
		}
		if got := head.Hash().String(); got != opts.Commit {
			return fmt.Errorf("%w: tag %s is at %s, expected %s", ErrCommitMismatch, opts.Tag, got, opts.Commit)
		}
	}

	return nil
}
