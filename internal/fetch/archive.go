package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"github.com/qobs-build/forge/internal/msg"
	"github.com/ulikunitz/xz"
)

var (
	errUnknownArchive = errors.New("unknown archive format")
	errUnsafePath     = errors.New("archive entry escapes destination")
)

// Download fetches src into the file dst, verifying sha256 when given
func Download(ctx context.Context, src, dst, sha256 string, progress getter.ProgressTracker) error {
	if sha256 != "" {
		u, err := url.Parse(src)
		if err != nil {
			return err
		}
		q := u.Query()
		q.Set("checksum", "sha256:"+sha256)
		u.RawQuery = q.Encode()
		src = u.String()
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	client := &getter.Client{
		Ctx:     ctx,
		Src:     src,
		Dst:     dst,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
		// extraction is done by Extract, which can strip the root directory
		Decompressors:    map[string]getter.Decompressor{},
		ProgressListener: progress,
	}
	if err := client.Get(); err != nil {
		return fmt.Errorf("failed to download %s: %w", src, err)
	}
	return nil
}

// archiveName is the file name an archive URL is cached under
func archiveName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

// Extract unpacks a .tar, .tar.gz, .tgz, .tar.xz, .txz or .zip archive into dst.
// With stripRoot the first path component of every entry is dropped.
func Extract(archive, dst string, stripRoot bool) error {
	name := strings.ToLower(archive)
	if strings.HasSuffix(name, ".zip") {
		return extractZip(archive, dst, stripRoot)
	}

	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		r = xzr
	case strings.HasSuffix(name, ".tar"):
		r = f
	default:
		return fmt.Errorf("%w: %s", errUnknownArchive, filepath.Base(archive))
	}

	return extractTar(tar.NewReader(r), dst, stripRoot)
}

// entryPath maps an archive entry onto a path under dst. ok is false for
// entries that vanish after stripping the root.
func entryPath(dst, name string, stripRoot bool) (string, bool, error) {
	name = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, `\`, "/")), "/")
	if stripRoot {
		_, rest, found := strings.Cut(name, "/")
		if !found || rest == "" {
			return "", false, nil
		}
		name = rest
	}
	if name == "" || name == "." {
		return "", false, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", false, fmt.Errorf("%w: %s", errUnsafePath, name)
	}
	return filepath.Join(dst, filepath.FromSlash(name)), true, nil
}

// checkParents refuses targets whose parent directories under dst include a
// symlink, so nothing is written through a link extracted earlier
func checkParents(dst, target string) error {
	rel, err := filepath.Rel(dst, filepath.Dir(target))
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}
	cur := dst
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s is below symlink %s", errUnsafePath, target, cur)
		}
	}
	return nil
}

// checkLink refuses symlinks pointing outside dst
func checkLink(dst, target, linkname string) error {
	linkname = filepath.FromSlash(strings.ReplaceAll(linkname, `\`, "/"))
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, string(filepath.Separator)) {
		return fmt.Errorf("%w: %s links to absolute path %s", errUnsafePath, target, linkname)
	}
	rel, err := filepath.Rel(dst, filepath.Join(filepath.Dir(target), linkname))
	if err != nil || !filepath.IsLocal(rel) {
		return fmt.Errorf("%w: %s links to %s", errUnsafePath, target, linkname)
	}
	return nil
}

func extractTar(tr *tar.Reader, dst string, stripRoot bool) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, ok, err := entryPath(dst, header.Name, stripRoot)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := checkParents(dst, target); err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", target, err)
			}
		case tar.TypeSymlink:
			if err := checkLink(dst, target, header.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink %s -> %s: %w", target, header.Linkname, err)
			}
		case tar.TypeLink:
			linkTarget, ok, err := entryPath(dst, header.Linkname, stripRoot)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			os.Remove(target)
			if err := os.Link(linkTarget, target); err != nil {
				return fmt.Errorf("creating hard link %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		default:
			msg.Warn("skipping archive entry %s of type %c", header.Name, header.Typeflag)
		}
	}
}

func extractZip(archive, dst string, stripRoot bool) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, file := range zr.File {
		target, ok, err := entryPath(dst, file.Name, stripRoot)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := checkParents(dst, target); err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return err
		}
		err = writeFile(target, rc, file.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return out.Close()
}
