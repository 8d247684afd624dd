// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crop normalizes raw micrographs by cutting away the information
// band that the microscope burns into the bottom of each frame.
package crop

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/pdiddy/dataset-engine/pkg/types"
)

// Default geometry for OD_MetalDAM micrographs.
const (
	DefaultSourceWidth  = 1280
	DefaultSourceHeight = 895
	DefaultTargetWidth  = 1024
	DefaultTargetHeight = 703
	DefaultJPEGQuality  = 95
)

// ImageShapeError reports an input whose resolution is not the configured
// source resolution. Such images are never cropped.
type ImageShapeError struct {
	Path          string
	Width, Height int
	WantW, WantH  int
}

func (e *ImageShapeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unexpected image size %dx%d, want %dx%d", e.Width, e.Height, e.WantW, e.WantH)
	}
	return fmt.Sprintf("%s: unexpected image size %dx%d, want %dx%d", e.Path, e.Width, e.Height, e.WantW, e.WantH)
}

// WithDefaults fills zero geometry fields of cfg with the OD_MetalDAM values.
func WithDefaults(cfg types.CropConfig) types.CropConfig {
	if cfg.SourceWidth == 0 {
		cfg.SourceWidth = DefaultSourceWidth
	}
	if cfg.SourceHeight == 0 {
		cfg.SourceHeight = DefaultSourceHeight
	}
	if cfg.TargetWidth == 0 {
		cfg.TargetWidth = DefaultTargetWidth
	}
	if cfg.TargetHeight == 0 {
		cfg.TargetHeight = DefaultTargetHeight
	}
	if cfg.JPEGQuality == 0 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	return cfg
}

// Validate checks that the retained region lies inside the source frame.
func Validate(cfg types.CropConfig) error {
	switch {
	case cfg.SourceWidth <= 0 || cfg.SourceHeight <= 0:
		return fmt.Errorf("source size %dx%d must be positive", cfg.SourceWidth, cfg.SourceHeight)
	case cfg.TargetWidth <= 0 || cfg.TargetHeight <= 0:
		return fmt.Errorf("target size %dx%d must be positive", cfg.TargetWidth, cfg.TargetHeight)
	case cfg.OffsetX < 0 || cfg.OffsetY < 0:
		return fmt.Errorf("offset (%d,%d) must not be negative", cfg.OffsetX, cfg.OffsetY)
	case cfg.OffsetX+cfg.TargetWidth > cfg.SourceWidth || cfg.OffsetY+cfg.TargetHeight > cfg.SourceHeight:
		return fmt.Errorf("region %dx%d at (%d,%d) exceeds source %dx%d",
			cfg.TargetWidth, cfg.TargetHeight, cfg.OffsetX, cfg.OffsetY, cfg.SourceWidth, cfg.SourceHeight)
	}
	return nil
}

// Region returns the retained rectangle relative to the image origin.
func Region(cfg types.CropConfig) image.Rectangle {
	return image.Rect(cfg.OffsetX, cfg.OffsetY, cfg.OffsetX+cfg.TargetWidth, cfg.OffsetY+cfg.TargetHeight)
}

// subImager is implemented by every concrete image type in the standard library.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the configured region of img. Pixels inside the region are
// unchanged: standard library image types yield a sub-image view sharing
// the source pixels, whose bounds keep the source coordinates. img must be
// exactly the source resolution.
func Crop(img image.Image, cfg types.CropConfig) (image.Image, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() != cfg.SourceWidth || b.Dy() != cfg.SourceHeight {
		return nil, &ImageShapeError{
			Width: b.Dx(), Height: b.Dy(),
			WantW: cfg.SourceWidth, WantH: cfg.SourceHeight,
		}
	}

	r := Region(cfg).Add(b.Min)
	if s, ok := img.(subImager); ok {
		return s.SubImage(r), nil
	}

	dst := image.Rect(0, 0, cfg.TargetWidth, cfg.TargetHeight)
	out := image.NewRGBA64(dst)
	draw.Draw(out, dst, img, r.Min, draw.Src)
	return out, nil
}
