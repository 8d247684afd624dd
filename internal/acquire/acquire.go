// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads the raw dataset archive and extracts it to disk.
package acquire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/pdiddy/dataset-engine/internal/httputil"
	"github.com/pdiddy/dataset-engine/pkg/types"
)

// DefaultURL is the OD_MetalDAM repository archive.
const DefaultURL = "https://github.com/ari-dasci/OD_MetalDAM/archive/refs/heads/main.zip"

// markerFile records a completed extraction inside the raw directory.
const markerFile = ".acquired"

// AcquisitionError reports a failure fetching or unpacking the archive.
type AcquisitionError struct {
	// Op is the failing step: "download", "verify", or "extract".
	Op string
	// Source is the archive URL or path involved.
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire: %s %s: %v", e.Op, e.Source, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Result holds the outcome of an acquisition run.
type Result struct {
	ArchivePath string
	RawDir      string
	Bytes       int64
	Files       int
	Skipped     bool
}

// Acquire fetches the archive at cfg.URL into cfg.ArchiveDir and extracts
// it into cfg.RawDir. A raw directory that already holds a completed
// extraction is left alone unless cfg.Force is set. Extraction goes to a
// sibling staging directory that replaces RawDir only on success.
func Acquire(ctx context.Context, client *http.Client, cfg types.AcquisitionConfig, w io.Writer) (Result, error) {
	src := cfg.URL
	if src == "" {
		src = DefaultURL
	}
	res := Result{RawDir: cfg.RawDir}

	marker := filepath.Join(cfg.RawDir, markerFile)
	if _, err := os.Stat(marker); err == nil && !cfg.Force {
		fmt.Fprintf(w, "skipped: %s (already acquired)\n", cfg.RawDir)
		res.Skipped = true
		return res, nil
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		return res, fmt.Errorf("creating directory %s: %w", cfg.ArchiveDir, err)
	}
	res.ArchivePath = filepath.Join(cfg.ArchiveDir, archiveName(src))

	digest, cached := cachedArchive(res.ArchivePath, cfg)
	if cached {
		fmt.Fprintf(w, "cached:  %s\n", res.ArchivePath)
	} else {
		fmt.Fprintf(w, "downloading: %s\n", src)
		n, sum, err := download(ctx, client, src, res.ArchivePath, cfg, w)
		if err != nil {
			return res, &AcquisitionError{Op: "download", Source: src, Err: err}
		}
		res.Bytes = n
		digest = sum
		fmt.Fprintf(w, "downloaded: %s (%s)\n", filepath.Base(res.ArchivePath), humanize.Bytes(uint64(n)))
	}

	if cfg.SHA256 != "" && !strings.EqualFold(cfg.SHA256, digest) {
		return res, &AcquisitionError{
			Op:     "verify",
			Source: res.ArchivePath,
			Err:    fmt.Errorf("sha256 mismatch: got %s, want %s", digest, cfg.SHA256),
		}
	}

	staging := strings.TrimRight(cfg.RawDir, string(filepath.Separator)) + ".partial"
	if err := os.RemoveAll(staging); err != nil {
		return res, fmt.Errorf("clearing staging directory: %w", err)
	}
	files, err := Extract(ctx, res.ArchivePath, staging, cfg.StripComponents)
	if err != nil {
		os.RemoveAll(staging)
		return res, &AcquisitionError{Op: "extract", Source: res.ArchivePath, Err: err}
	}
	res.Files = files

	if err := writeMarker(filepath.Join(staging, markerFile), src, digest); err != nil {
		os.RemoveAll(staging)
		return res, err
	}
	if err := os.RemoveAll(cfg.RawDir); err != nil {
		return res, fmt.Errorf("replacing %s: %w", cfg.RawDir, err)
	}
	if err := os.Rename(staging, cfg.RawDir); err != nil {
		return res, fmt.Errorf("renaming staging directory: %w", err)
	}

	fmt.Fprintf(w, "extracted: %d files into %s\n", files, cfg.RawDir)
	return res, nil
}

// archiveName derives a local file name from the archive URL.
func archiveName(src string) string {
	name := src
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		name = u.Path
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "dataset.zip"
	}
	return name
}

// cachedArchive reports whether a previously downloaded archive can be
// reused. Reuse requires a configured checksum that the file still matches.
func cachedArchive(archivePath string, cfg types.AcquisitionConfig) (string, bool) {
	if cfg.Force || cfg.SHA256 == "" {
		return "", false
	}
	sum, err := fileSHA256(archivePath)
	if err != nil {
		return "", false
	}
	return sum, strings.EqualFold(sum, cfg.SHA256)
}

// download fetches src to destPath through a temporary file, returning the
// byte count and hex SHA-256 of the body.
func download(ctx context.Context, client *http.Client, src, destPath string, cfg types.AcquisitionConfig, w io.Writer) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, cfg.MaxRetries)
	if err != nil {
		return 0, "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, src)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*.tmp")
	if err != nil {
		return 0, "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	h := sha256.New()
	sinks := []io.Writer{tmpFile, h}
	if bar := newProgressBar(w, resp.ContentLength); bar != nil {
		sinks = append(sinks, bar)
		defer bar.Finish()
	}

	n, copyErr := io.Copy(io.MultiWriter(sinks...), resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("short body: got %d of %d bytes", n, resp.ContentLength)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("renaming temp file: %w", err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// newProgressBar returns a byte progress bar when w is a terminal, nil otherwise.
func newProgressBar(w io.Writer, size int64) *progressbar.ProgressBar {
	f, ok := w.(*os.File)
	if !ok {
		return nil
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return nil
	}
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(f),
		progressbar.OptionSetDescription("archive"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func fileSHA256(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digestOf(f, sha256.New())
}

func digestOf(r io.Reader, h hash.Hash) (string, error) {
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeMarker(p, src, digest string) error {
	body := fmt.Sprintf("source: %s\nsha256: %s\nacquired_at: %s\n",
		src, digest, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	return nil
}

// IsAcquisitionError reports whether err came from a failed acquisition step.
func IsAcquisitionError(err error) bool {
	var ae *AcquisitionError
	return errors.As(err, &ae)
}
