package recipe

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

const SourcesFilename = "sources.yml"

// Source says where the code for one version lives
type Source struct {
	URL string `yaml:"url"`
	// Sha256 is the archive checksum
	Sha256 string `yaml:"sha256"`
	// Commit pins git sources; the clone fails when HEAD differs
	Commit     string `yaml:"commit"`
	StripRoot  *bool  `yaml:"strip_root"`
	Submodules bool   `yaml:"submodules"`
}

func (s Source) IsGit() bool {
	return strings.HasPrefix(s.URL, "git:") || strings.HasSuffix(s.URL, ".git")
}

// ShouldStripRoot reports whether the single top level directory of an archive is dropped
func (s Source) ShouldStripRoot() bool {
	return s.StripRoot == nil || *s.StripRoot
}

// Patch is a diff-match-patch text patch (diffmatchpatch PatchToText output,
// "@@ -l,s +l,s @@" hunks with %-encoded lines) for one file. Unified diffs
// are not accepted.
type Patch struct {
	PatchFile   string `yaml:"patch_file"`
	File        string `yaml:"file"`
	Description string `yaml:"patch_description"`
}

// Sources mirrors a conandata.yml: sources and patches keyed by version
type Sources struct {
	Sources map[string]Source  `yaml:"sources"`
	Patches map[string][]Patch `yaml:"patches"`
}

func ParseSourcesFile(path string) (*Sources, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Sources
	if err := yaml.NewDecoder(bufio.NewReader(f)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &s, nil
}

// Versions returns the known versions, newest first
func (s *Sources) Versions() []string {
	versions := make([]string, 0, len(s.Sources))
	for v := range s.Sources {
		versions = append(versions, v)
	}
	slices.SortFunc(versions, func(a, b string) int {
		va, errA := semver.NewVersion(a)
		vb, errB := semver.NewVersion(b)
		if errA != nil || errB != nil {
			return strings.Compare(b, a)
		}
		return vb.Compare(va)
	})
	return versions
}

func (s *Sources) Latest() string {
	versions := s.Versions()
	if len(versions) == 0 {
		return ""
	}
	return versions[0]
}
