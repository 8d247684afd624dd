// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crop

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dataset-engine/pkg/types"
)

// patterned returns an NRGBA image whose pixels encode their coordinates.
func patterned(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err)
	return img
}

func smallConfig() types.CropConfig {
	return types.CropConfig{
		SourceWidth: 8, SourceHeight: 6,
		TargetWidth: 5, TargetHeight: 4,
		OffsetX: 1,
	}
}

func TestCropKeepsRetainedPixels(t *testing.T) {
	cfg := smallConfig()
	src := patterned(8, 6)

	out, err := Crop(src, cfg)
	require.NoError(t, err)

	b := out.Bounds()
	assert.Equal(t, 5, b.Dx())
	assert.Equal(t, 4, b.Dy())
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			assert.Equal(t, src.At(x+1, y), out.At(b.Min.X+x, b.Min.Y+y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestCropNonZeroOrigin(t *testing.T) {
	cfg := smallConfig()
	base := patterned(20, 20)
	src := base.SubImage(image.Rect(4, 4, 12, 10))

	out, err := Crop(src, cfg)
	require.NoError(t, err)
	b := out.Bounds()
	assert.Equal(t, image.Rect(5, 4, 10, 8), b)
	assert.Equal(t, base.At(5, 4), out.At(b.Min.X, b.Min.Y))
}

func TestCropRejectsWrongShape(t *testing.T) {
	cfg := smallConfig()
	for _, size := range [][2]int{{5, 4}, {8, 7}, {9, 6}} {
		_, err := Crop(patterned(size[0], size[1]), cfg)
		var se *ImageShapeError
		require.True(t, errors.As(err, &se), "size %v", size)
		assert.Equal(t, size[0], se.Width)
		assert.Equal(t, size[1], se.Height)
		assert.Equal(t, 8, se.WantW)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.CropConfig)
		wantErr string
	}{
		{"defaults valid", func(*types.CropConfig) {}, ""},
		{"zero target", func(c *types.CropConfig) { c.TargetWidth = 0 }, "target size"},
		{"negative offset", func(c *types.CropConfig) { c.OffsetY = -1 }, "offset"},
		{"region too wide", func(c *types.CropConfig) { c.OffsetX = 300 }, "exceeds source"},
		{"region too tall", func(c *types.CropConfig) { c.TargetHeight = 900 }, "exceeds source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := WithDefaults(types.CropConfig{})
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := WithDefaults(types.CropConfig{TargetHeight: 700})
	assert.Equal(t, 1280, cfg.SourceWidth)
	assert.Equal(t, 895, cfg.SourceHeight)
	assert.Equal(t, 1024, cfg.TargetWidth)
	assert.Equal(t, 700, cfg.TargetHeight)
	assert.Equal(t, 95, cfg.JPEGQuality)
}

func TestCropDirDefaultGeometry(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw")
	out := filepath.Join(dir, "cropped")

	src := patterned(1280, 895)
	writePNG(t, filepath.Join(in, "micrograph0.png"), src)
	writePNG(t, filepath.Join(in, "nested", "micrograph1.png"), src)
	require.NoError(t, os.WriteFile(filepath.Join(in, "README.txt"), []byte("not an image"), 0o644))

	var log bytes.Buffer
	res, err := CropDir(context.Background(), types.CropConfig{InputDir: in, OutputDir: out}, &log)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cropped)
	assert.False(t, res.HasFailures())

	for _, rel := range []string{"micrograph0.png", filepath.Join("nested", "micrograph1.png")} {
		got := decodeFile(t, filepath.Join(out, rel))
		b := got.Bounds()
		require.Equal(t, 1024, b.Dx(), rel)
		require.Equal(t, 703, b.Dy(), rel)
		for _, p := range []image.Point{{0, 0}, {1023, 0}, {0, 702}, {1023, 702}, {511, 350}} {
			assert.Equal(t, color.NRGBAModel.Convert(src.At(p.X, p.Y)), color.NRGBAModel.Convert(got.At(b.Min.X+p.X, b.Min.Y+p.Y)), "%s at %v", rel, p)
		}
	}
	assert.Contains(t, log.String(), "cropped: micrograph0.png")
}

func TestCropDirSkipAndOverwrite(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig()
	cfg.InputDir = filepath.Join(dir, "raw")
	cfg.OutputDir = filepath.Join(dir, "out")
	writePNG(t, filepath.Join(cfg.InputDir, "a.png"), patterned(8, 6))

	var log bytes.Buffer
	res, err := CropDir(context.Background(), cfg, &log)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cropped)

	log.Reset()
	res, err = CropDir(context.Background(), cfg, &log)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Contains(t, log.String(), "skipped: a.png")

	cfg.Overwrite = true
	res, err = CropDir(context.Background(), cfg, &log)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cropped)
}

func TestCropDirReportsShapeFailures(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig()
	cfg.InputDir = filepath.Join(dir, "raw")
	cfg.OutputDir = filepath.Join(dir, "out")
	writePNG(t, filepath.Join(cfg.InputDir, "good.png"), patterned(8, 6))
	writePNG(t, filepath.Join(cfg.InputDir, "bad.png"), patterned(5, 4))

	var log bytes.Buffer
	res, err := CropDir(context.Background(), cfg, &log)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cropped)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)

	var se *ImageShapeError
	require.ErrorAs(t, res.Errors[0], &se)
	assert.True(t, strings.HasSuffix(se.Path, "bad.png"))
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "bad.png"))
	assert.Contains(t, log.String(), "failed:  bad.png")
}

func TestCropFileJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.jpg")
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, patterned(8, 6), &jpeg.Options{Quality: 90}))
	require.NoError(t, f.Close())

	dst := filepath.Join(dir, "out", "in.jpg")
	require.NoError(t, CropFile(src, dst, smallConfig()))

	got := decodeFile(t, dst)
	assert.Equal(t, 5, got.Bounds().Dx())
	assert.Equal(t, 4, got.Bounds().Dy())
}

func TestCropDirMissingInput(t *testing.T) {
	_, err := CropDir(context.Background(), types.CropConfig{InputDir: filepath.Join(t.TempDir(), "nope")}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestOutputExt(t *testing.T) {
	assert.Equal(t, ".png", OutputExt(".webp"))
	assert.Equal(t, ".png", OutputExt(".GIF"))
	assert.Equal(t, ".jpg", OutputExt(".jpg"))
	assert.True(t, IsImage("a/b/C.TIFF"))
	assert.False(t, IsImage("a/b/c.sql"))
}
