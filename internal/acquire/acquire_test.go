// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dataset-engine/internal/httputil"
	"github.com/pdiddy/dataset-engine/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

// archiveFiles is the fixture layout, wrapped in a GitHub-style top-level dir.
var archiveFiles = map[string]string{
	"OD_MetalDAM-main/cropped_images/micrograph0.jpg": "jpeg-bytes-0",
	"OD_MetalDAM-main/cropped_images/micrograph1.jpg": "jpeg-bytes-1",
	"OD_MetalDAM-main/labels/micrograph0.png":         "mask-0",
	"OD_MetalDAM-main/MetalDAM_metadata.sql":          "INSERT INTO t VALUES (1);",
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func serveBytes(t *testing.T, body []byte, calls *int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(dir, url string) types.AcquisitionConfig {
	return types.AcquisitionConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "dataset-engine-test/0.1",
		},
		URL:             url,
		ArchiveDir:      filepath.Join(dir, "archive"),
		RawDir:          filepath.Join(dir, "raw"),
		StripComponents: 1,
	}
}

func TestAcquireZip(t *testing.T) {
	ts := serveBytes(t, buildZip(t, archiveFiles), nil)
	dir := t.TempDir()
	cfg := testConfig(dir, ts.URL+"/archive/refs/heads/main.zip")

	var out bytes.Buffer
	res, err := Acquire(context.Background(), ts.Client(), cfg, &out)
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, 4, res.Files)
	assert.Equal(t, filepath.Join(dir, "archive", "main.zip"), res.ArchivePath)

	data, err := os.ReadFile(filepath.Join(dir, "raw", "cropped_images", "micrograph1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes-1", string(data))

	assert.FileExists(t, filepath.Join(dir, "raw", markerFile))
	assert.NoDirExists(t, filepath.Join(dir, "raw.partial"))
	assert.Contains(t, out.String(), "downloading:")
	assert.Contains(t, out.String(), "extracted: 4 files")
}

func TestAcquireTarGz(t *testing.T) {
	ts := serveBytes(t, buildTarGz(t, archiveFiles), nil)
	dir := t.TempDir()
	cfg := testConfig(dir, ts.URL+"/dataset.tar.gz")

	var out bytes.Buffer
	res, err := Acquire(context.Background(), ts.Client(), cfg, &out)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Files)
	assert.FileExists(t, filepath.Join(dir, "raw", "labels", "micrograph0.png"))
}

func TestAcquireSkipsCompletedExtraction(t *testing.T) {
	var calls int32
	ts := serveBytes(t, buildZip(t, archiveFiles), &calls)
	dir := t.TempDir()
	cfg := testConfig(dir, ts.URL+"/main.zip")

	var out bytes.Buffer
	_, err := Acquire(context.Background(), ts.Client(), cfg, &out)
	require.NoError(t, err)

	out.Reset()
	res, err := Acquire(context.Background(), ts.Client(), cfg, &out)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Contains(t, out.String(), "skipped:")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	cfg.Force = true
	_, err = Acquire(context.Background(), ts.Client(), cfg, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAcquireChecksum(t *testing.T) {
	body := buildZip(t, archiveFiles)
	sum := sha256.Sum256(body)
	good := hex.EncodeToString(sum[:])

	t.Run("match", func(t *testing.T) {
		ts := serveBytes(t, body, nil)
		cfg := testConfig(t.TempDir(), ts.URL+"/main.zip")
		cfg.SHA256 = strings.ToUpper(good)
		_, err := Acquire(context.Background(), ts.Client(), cfg, &bytes.Buffer{})
		require.NoError(t, err)
	})

	t.Run("mismatch", func(t *testing.T) {
		ts := serveBytes(t, body, nil)
		dir := t.TempDir()
		cfg := testConfig(dir, ts.URL+"/main.zip")
		cfg.SHA256 = strings.Repeat("0", 64)
		_, err := Acquire(context.Background(), ts.Client(), cfg, &bytes.Buffer{})

		var ae *AcquisitionError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "verify", ae.Op)
		assert.NoDirExists(t, filepath.Join(dir, "raw"))
	})

	t.Run("cached archive reused", func(t *testing.T) {
		var calls int32
		ts := serveBytes(t, body, &calls)
		dir := t.TempDir()
		cfg := testConfig(dir, ts.URL+"/main.zip")
		cfg.SHA256 = good
		require.NoError(t, os.MkdirAll(cfg.ArchiveDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(cfg.ArchiveDir, "main.zip"), body, 0o644))

		var out bytes.Buffer
		_, err := Acquire(context.Background(), ts.Client(), cfg, &out)
		require.NoError(t, err)
		assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
		assert.Contains(t, out.String(), "cached:")
	})
}

func TestAcquireHTTPFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	dir := t.TempDir()
	cfg := testConfig(dir, ts.URL+"/missing.zip")
	_, err := Acquire(context.Background(), ts.Client(), cfg, &bytes.Buffer{})

	require.Error(t, err)
	assert.True(t, IsAcquisitionError(err))
	var ae *AcquisitionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "download", ae.Op)
	assert.Contains(t, err.Error(), "HTTP 404")

	entries, _ := os.ReadDir(cfg.ArchiveDir)
	assert.Empty(t, entries, "temp file should be removed")
}

func TestAcquireBearerToken(t *testing.T) {
	body := buildZip(t, archiveFiles)
	var gotAuth, gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.Write(body)
	}))
	defer ts.Close()

	cfg := testConfig(t.TempDir(), ts.URL+"/main.zip")
	cfg.Token = "secret-token"
	_, err := Acquire(context.Background(), ts.Client(), cfg, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "dataset-engine-test/0.1", gotUA)
}

func TestExtractRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(archive, buildZip(t, map[string]string{
		"top/../../escape.txt": "nope",
	}), 0o644))

	_, err := Extract(context.Background(), archive, filepath.Join(dir, "out"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnsafePath)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestEntryPath(t *testing.T) {
	dest := filepath.FromSlash("/data/raw")
	tests := []struct {
		name    string
		entry   string
		strip   int
		want    string
		wantOK  bool
		wantErr bool
	}{
		{"strip top dir", "repo-main/images/a.jpg", 1, filepath.Join(dest, "images", "a.jpg"), true, false},
		{"no strip", "images/a.jpg", 0, filepath.Join(dest, "images", "a.jpg"), true, false},
		{"top dir only", "repo-main/", 1, "", false, false},
		{"absolute", "/etc/passwd", 0, "", false, true},
		{"parent", "../x", 0, "", false, true},
		{"backslashes", `repo\images\a.jpg`, 1, filepath.Join(dest, "images", "a.jpg"), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := entryPath(dest, tt.entry, tt.strip)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectKindByName(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]archiveKind{
		"a.tar":     kindTar,
		"a.tar.zst": kindTarZstd,
		"a.tgz":     kindTarGzip,
	}
	for name, want := range tests {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		got, err := detectKind(p)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	p := filepath.Join(dir, "a.rar")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	_, err := detectKind(p)
	assert.Error(t, err)
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "main.zip", archiveName(DefaultURL))
	assert.Equal(t, "data.tar.gz", archiveName("https://example.com/files/data.tar.gz?token=1"))
	assert.Equal(t, "dataset.zip", archiveName("https://example.com/"))
}
