package linkflags

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Dependency is a resolved package whose artifacts a native build links against
type Dependency interface {
	IncludeDirs() []string
	LibDirs() []string
}

// Kind tells how a library file is linked
type Kind int

const (
	Dynamic Kind = iota
	Static
)

func (k Kind) String() string {
	if k == Static {
		return "static"
	}
	return "dynamic"
}

// LibraryFile is a regular file found in a dependency's library directory
type LibraryFile struct {
	Dir     string
	Name    string
	Kind    Kind
	LibName string
}

// Path returns the full path of the file
func (f LibraryFile) Path() string {
	return filepath.Join(f.Dir, f.Name)
}

// FS is the filesystem view used to enumerate library directories.
// Stat must follow symlinks.
type FS interface {
	ReadDir(dir string) ([]fs.DirEntry, error)
	Stat(path string) (fs.FileInfo, error)
}

type osFS struct{}

func (osFS) ReadDir(dir string) ([]fs.DirEntry, error) { return os.ReadDir(dir) }
func (osFS) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

// OSFS returns an FS backed by the host filesystem
func OSFS() FS { return osFS{} }

type Config struct {
	// StaticSuffix marks static archives, which are linked by full path
	StaticSuffix string
	// LibPrefix is stripped from file names to form `-l` names
	LibPrefix string
	FS        FS
}

func DefaultConfig() Config {
	return Config{
		StaticSuffix: ".a",
		LibPrefix:    "lib",
		FS:           OSFS(),
	}
}

// FilesystemError is returned when a library directory can't be listed
type FilesystemError struct {
	Dir string
	Err error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("can't list library directory %s: %v", e.Dir, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// LinkFlagSet holds the synthesized linker flags, grouped by kind
type LinkFlagSet struct {
	SearchPaths []string // -L<dir>
	DynamicLibs []string // -l<name>
	StaticLibs  []string // full archive paths
}

// Flags returns every flag in link order
func (s LinkFlagSet) Flags() []string {
	out := make([]string, 0, len(s.SearchPaths)+len(s.DynamicLibs)+len(s.StaticLibs))
	out = append(out, s.SearchPaths...)
	out = append(out, s.DynamicLibs...)
	out = append(out, s.StaticLibs...)
	return out
}

func (s LinkFlagSet) String() string {
	return strings.Join(s.Flags(), " ")
}

func (s LinkFlagSet) Empty() bool {
	return len(s.SearchPaths) == 0 && len(s.DynamicLibs) == 0 && len(s.StaticLibs) == 0
}

type Synthesizer struct {
	cfg Config
}

func New(cfg Config) *Synthesizer {
	if cfg.FS == nil {
		cfg.FS = OSFS()
	}
	return &Synthesizer{cfg: cfg}
}

// Synthesize derives the linker flags for deps. Every library directory contributes
// a search path, even when empty. Order follows deps, then directories, then the
// directory listing.
func (s *Synthesizer) Synthesize(deps []Dependency) (LinkFlagSet, error) {
	var set LinkFlagSet
	for _, dep := range deps {
		for _, dir := range dep.LibDirs() {
			set.SearchPaths = append(set.SearchPaths, "-L"+dir)

			files, err := s.Scan(dir)
			if err != nil {
				return LinkFlagSet{}, err
			}
			for _, f := range files {
				switch f.Kind {
				case Static:
					set.StaticLibs = append(set.StaticLibs, f.Path())
				default:
					set.DynamicLibs = append(set.DynamicLibs, "-l"+f.LibName)
				}
			}
		}
	}
	return set, nil
}

// Scan lists the regular files in dir and classifies them
func (s *Synthesizer) Scan(dir string) ([]LibraryFile, error) {
	entries, err := s.cfg.FS.ReadDir(dir)
	if err != nil {
		return nil, &FilesystemError{Dir: dir, Err: err}
	}

	var files []LibraryFile
	for _, entry := range entries {
		if !s.isRegular(dir, entry) {
			continue
		}
		name := entry.Name()
		f := LibraryFile{Dir: dir, Name: name}
		if s.cfg.StaticSuffix != "" && strings.HasSuffix(name, s.cfg.StaticSuffix) {
			f.Kind = Static
		} else {
			f.Kind = Dynamic
			f.LibName = LibraryName(name, s.cfg.LibPrefix)
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *Synthesizer) isRegular(dir string, entry fs.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	// versioned shared objects are usually symlinks, resolve them
	info, err := s.cfg.FS.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.Mode().IsRegular()
}

// LibraryName turns a library file name into the name passed to `-l`:
// prefix is stripped when present and everything from the first dot is dropped.
func LibraryName(file, prefix string) string {
	name := strings.TrimPrefix(file, prefix)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// IncludeFlags returns `-I<dir>` for every include directory of deps, in order
func IncludeFlags(deps []Dependency) []string {
	var flags []string
	for _, dep := range deps {
		for _, dir := range dep.IncludeDirs() {
			flags = append(flags, "-I"+dir)
		}
	}
	return flags
}
