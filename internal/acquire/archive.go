// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// archiveKind identifies a supported archive container.
type archiveKind int

const (
	kindUnknown archiveKind = iota
	kindZip
	kindTar
	kindTarGzip
	kindTarZstd
)

func (k archiveKind) String() string {
	switch k {
	case kindZip:
		return "zip"
	case kindTar:
		return "tar"
	case kindTarGzip:
		return "tar.gz"
	case kindTarZstd:
		return "tar.zst"
	default:
		return "unknown"
	}
}

var (
	magicZip  = []byte("PK\x03\x04")
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// errUnsafePath reports an archive entry that would land outside the
// destination directory.
var errUnsafePath = errors.New("entry escapes destination")

// detectKind sniffs the archive header, falling back to the file name.
func detectKind(archivePath string) (archiveKind, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return kindUnknown, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return kindUnknown, err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, magicZip):
		return kindZip, nil
	case bytes.HasPrefix(head, magicGzip):
		return kindTarGzip, nil
	case bytes.HasPrefix(head, magicZstd):
		return kindTarZstd, nil
	case len(head) >= 262 && string(head[257:262]) == "ustar":
		return kindTar, nil
	}

	name := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return kindZip, nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return kindTarGzip, nil
	case strings.HasSuffix(name, ".tar.zst"):
		return kindTarZstd, nil
	case strings.HasSuffix(name, ".tar"):
		return kindTar, nil
	}
	return kindUnknown, fmt.Errorf("unrecognized archive format: %s", filepath.Base(archivePath))
}

// Extract unpacks the archive at archivePath into dest, dropping the first
// strip path components of every entry. It returns the number of regular
// files written. Entries whose path would leave dest are rejected.
func Extract(ctx context.Context, archivePath, dest string, strip int) (int, error) {
	kind, err := detectKind(archivePath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", dest, err)
	}

	switch kind {
	case kindZip:
		return extractZip(ctx, archivePath, dest, strip)
	default:
		f, err := os.Open(archivePath)
		if err != nil {
			return 0, err
		}
		defer f.Close()

		var r io.Reader = f
		switch kind {
		case kindTarGzip:
			gz, err := gzip.NewReader(f)
			if err != nil {
				return 0, fmt.Errorf("opening gzip stream: %w", err)
			}
			defer gz.Close()
			r = gz
		case kindTarZstd:
			zr, err := zstd.NewReader(f)
			if err != nil {
				return 0, fmt.Errorf("opening zstd stream: %w", err)
			}
			defer zr.Close()
			r = zr
		}
		return extractTar(ctx, r, dest, strip)
	}
}

func extractZip(ctx context.Context, archivePath, dest string, strip int) (int, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("opening zip: %w", err)
	}
	defer zr.Close()

	files := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		target, ok, err := entryPath(dest, f.Name, strip)
		if err != nil {
			return files, err
		}
		if !ok {
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return files, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		err = writeEntry(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func extractTar(ctx context.Context, r io.Reader, dest string, strip int) (int, error) {
	tr := tar.NewReader(r)
	files := 0
	for {
		if err := ctx.Err(); err != nil {
			return files, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return files, nil
		}
		if err != nil {
			return files, fmt.Errorf("reading tar: %w", err)
		}
		target, ok, err := entryPath(dest, hdr.Name, strip)
		if err != nil {
			return files, err
		}
		if !ok {
			continue
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return files, err
			}
			files++
		}
	}
}

// entryPath maps an archive entry name to a path under dest. ok is false
// for entries consumed entirely by stripping.
func entryPath(dest, name string, strip int) (string, bool, error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	if strings.HasPrefix(clean, "/") || containsDotDot(parts) {
		return "", false, fmt.Errorf("%w: %s", errUnsafePath, name)
	}
	if strip >= len(parts) {
		return "", false, nil
	}
	rel := filepath.FromSlash(strings.Join(parts[strip:], "/"))
	if rel == "." || rel == "" {
		return "", false, nil
	}
	if !filepath.IsLocal(rel) {
		return "", false, fmt.Errorf("%w: %s", errUnsafePath, name)
	}
	return filepath.Join(dest, rel), true, nil
}

func containsDotDot(parts []string) bool {
	for _, p := range parts {
		if p == ".." {
			return true
		}
	}
	return false
}

func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return out.Close()
}
