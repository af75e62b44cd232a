package installer

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/abinit/psrepos/internal/manifest"
	"github.com/abinit/psrepos/internal/platform"
)

type archiveKind int

const (
	kindUnknown archiveKind = iota
	kindTarGz
	kindTar
	kindZip
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zipMagic  = []byte("PK\x03\x04")
)

// detectKind sniffs the archive format from its first bytes, falling back
// to the URL suffix.
func detectKind(archivePath, url string) (archiveKind, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return kindUnknown, fsError("opening archive", archivePath, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return kindUnknown, fsError("reading archive", archivePath, err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return kindTarGz, nil
	case bytes.HasPrefix(head, zipMagic):
		return kindZip, nil
	case len(head) >= 262 && string(head[257:262]) == "ustar":
		return kindTar, nil
	}

	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return kindTarGz, nil
	case strings.HasSuffix(lower, ".tar"):
		return kindTar, nil
	case strings.HasSuffix(lower, ".zip"):
		return kindZip, nil
	}
	return kindUnknown, nil
}

// extract unpacks the archive at archivePath into destDir. Entries that would
// land outside destDir make the whole archive corrupt; links and special
// files are skipped.
func (in *Installer) extract(ctx context.Context, archivePath, url, destDir string) error {
	kind, err := detectKind(archivePath, url)
	if err != nil {
		return err
	}
	switch kind {
	case kindTarGz, kindTar:
		return in.extractTar(ctx, archivePath, url, destDir, kind == kindTarGz)
	case kindZip:
		return in.extractZip(ctx, archivePath, url, destDir)
	default:
		return corrupt(url, "unrecognized archive format", nil)
	}
}

func (in *Installer) extractTar(ctx context.Context, archivePath, url, destDir string, gzipped bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fsError("opening archive", archivePath, err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if gzipped {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return corrupt(url, "creating gzip reader", err)
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return corrupt(url, "reading tar entry", err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			target, err := entryPath(destDir, hdr.Name)
			if err != nil {
				return corrupt(url, "unsafe entry", err)
			}
			if err := os.MkdirAll(target, platform.DirPerm); err != nil {
				return createError(url, hdr.Name, "creating directory", target, err)
			}
		case tar.TypeReg:
			target, err := entryPath(destDir, hdr.Name)
			if err != nil {
				return corrupt(url, "unsafe entry", err)
			}
			if target == destDir {
				return corrupt(url, "file entry without a name", nil)
			}
			if err := writeEntry(target, hdr.Name, tr, hdr.FileInfo().Mode(), url); err != nil {
				return err
			}
		default:
			in.logger.Debug("skipping non-regular archive entry", "name", hdr.Name, "type", string(hdr.Typeflag))
		}
	}
	return nil
}

func (in *Installer) extractZip(ctx context.Context, archivePath, url, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return corrupt(url, "opening zip archive", err)
	}
	defer r.Close()

	for _, zf := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := entryPath(destDir, zf.Name)
		if err != nil {
			return corrupt(url, "unsafe entry", err)
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, platform.DirPerm); err != nil {
				return createError(url, zf.Name, "creating directory", target, err)
			}
		case mode.IsRegular():
			rc, err := zf.Open()
			if err != nil {
				return corrupt(url, "opening zip entry "+zf.Name, err)
			}
			err = writeEntry(target, zf.Name, rc, mode, url)
			rc.Close()
			if err != nil {
				return err
			}
		default:
			in.logger.Debug("skipping non-regular archive entry", "name", zf.Name, "mode", mode.String())
		}
	}
	return nil
}

// entryPath resolves an archive entry name below destDir.
func entryPath(destDir, name string) (string, error) {
	name = strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "./")
	name = strings.TrimSuffix(name, "/")
	if name == "" || name == "." {
		return destDir, nil
	}
	if !manifest.IsLocalPath(name) {
		return "", fmt.Errorf("entry %q escapes the extraction directory", name)
	}
	return filepath.Join(destDir, filepath.FromSlash(name)), nil
}

// createError classifies a failure to create target for the archive entry
// name. An entry colliding with an earlier one makes the archive corrupt.
func createError(url, name, op, target string, err error) error {
	if errors.Is(err, syscall.ENOTDIR) || errors.Is(err, syscall.EISDIR) || errors.Is(err, fs.ErrExist) {
		return corrupt(url, "conflicting entry "+name, err)
	}
	return fsError(op, target, err)
}

// writeEntry copies one regular file out of the archive. Read failures mean
// the archive is truncated or damaged; write failures are local.
func writeEntry(target, name string, r io.Reader, mode os.FileMode, url string) error {
	if err := os.MkdirAll(filepath.Dir(target), platform.DirPerm); err != nil {
		return createError(url, name, "creating directory", filepath.Dir(target), err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, platform.SanitizeMode(mode))
	if err != nil {
		return createError(url, name, "creating file", target, err)
	}

	buf := make([]byte, 32*1024)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return fsError("writing file", target, writeErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return corrupt(url, "extracting "+filepath.Base(target), readErr)
		}
	}
	if err := out.Close(); err != nil {
		return fsError("closing file", target, err)
	}
	if err := platform.Chmod(target, platform.SanitizeMode(mode)); err != nil {
		return fsError("setting permissions", target, err)
	}
	return nil
}

// bundleRoot returns the directory holding the bundle inside an unpacked
// archive: the single top-level directory if the archive has one, otherwise
// the extraction directory itself.
func bundleRoot(unpacked string) (string, error) {
	entries, err := os.ReadDir(unpacked)
	if err != nil {
		return "", fsError("reading unpacked archive", unpacked, err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(unpacked, entries[0].Name()), nil
	}
	return unpacked, nil
}
