// Package imaging prepares tongue photos for upload: orientation fix,
// downscaling and JPEG re-encoding. It is pure Go so it runs on every client.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // registers GIF decoding
	"image/jpeg"
	_ "image/png" // registers PNG decoding

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // registers WebP decoding
)

const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 80

	// MaxPixels bounds width*height of an input before it is decoded. A few
	// hundred kilobytes of PNG can declare a multi-gigabyte bitmap.
	MaxPixels = 40_000_000
)

var (
	// ErrDecode is returned when the input is not a decodable image.
	ErrDecode = errors.New("decoding image")
	// ErrEncode is returned when the JPEG encoder fails.
	ErrEncode = errors.New("encoding image")
)

// Options controls Compress. Zero values fall back to the defaults.
type Options struct {
	MaxDimension int // longest edge in pixels
	Quality      int // JPEG quality, 1-100
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	return o
}

// Info describes a decoded image.
type Info struct {
	Width  int
	Height int
	Format string
}

// Inspect decodes only the header of the image.
func Inspect(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Compress decodes the photo, applies its EXIF orientation, scales it so the
// longer edge is at most MaxDimension while keeping the aspect ratio, and
// re-encodes it as JPEG. The output is always JPEG, even when no scaling was needed.
func Compress(data []byte, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img = Orient(img, orientation(data))

	bounds := img.Bounds()
	w, h := FitWithin(bounds.Dx(), bounds.Dy(), opts.MaxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// FitWithin returns dimensions scaled down so neither edge exceeds limit.
// Images already within bounds keep their size.
func FitWithin(width, height, limit int) (int, int) {
	if width <= limit && height <= limit {
		return width, height
	}

	scale := float64(limit) / float64(width)
	if s := float64(limit) / float64(height); s < scale {
		scale = s
	}

	w := int(float64(width)*scale + 0.5)
	h := int(float64(height)*scale + 0.5)
	if w > limit {
		w = limit
	}
	if h > limit {
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// orientation reads the EXIF orientation tag, defaulting to 1 (upright).
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}
