// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crop

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pdiddy/dataset-engine/pkg/types"
)

// imageExts lists the file extensions treated as images.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImage reports whether path has a recognized image extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// OutputExt returns the extension written for an input extension. Formats
// without an encoder are written as PNG.
func OutputExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".gif", ".webp":
		return ".png"
	}
	return ext
}

// CropFile decodes the image at src, crops it, and writes the result to
// dst in the same format through a temporary file.
func CropFile(src, dst string, cfg types.CropConfig) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	img, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decoding %s: %w", src, err)
	}

	out, err := Crop(img, cfg)
	if err != nil {
		var se *ImageShapeError
		if errors.As(err, &se) {
			se.Path = src
		}
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dst, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".crop-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	encErr := encode(tmp, out, format, cfg.JPEGQuality)
	closeErr := tmp.Close()
	if encErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("encoding %s: %w", dst, encErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func encode(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case "jpeg":
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return png.Encode(w, img)
	}
}
