package service

import (
	"fmt"
	"strings"

	"github.com/h2non/bimg"
)

// DefaultThumbnailSize is the edge length of admin thumbnails in pixels.
const DefaultThumbnailSize = 256

// Thumbnailer makes the square PNG previews shown in the admin API.
type Thumbnailer interface {
	Thumbnail(photo []byte) ([]byte, error)
}

// BimgThumbnailer uses bimg (libvips bindings). Fast, but needs libvips
// installed on the host.
type BimgThumbnailer struct {
	size       int
	background bimg.Color
}

// NewBimgThumbnailer creates a thumbnailer for size x size previews. The
// photo is embedded on a canvas of hexBackground ("ffffff" or "#ffffff")
// when its aspect ratio isn't square.
func NewBimgThumbnailer(size int, hexBackground string) (*BimgThumbnailer, error) {
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	r, g, b, err := parseHexColor(hexBackground)
	if err != nil {
		return nil, err
	}
	return &BimgThumbnailer{size: size, background: bimg.Color{R: r, G: g, B: b}}, nil
}

// Thumbnail resizes photo (any format libvips reads) to a square PNG.
func (t *BimgThumbnailer) Thumbnail(photo []byte) ([]byte, error) {
	out, err := bimg.NewImage(photo).Process(bimg.Options{
		Width:          t.size,
		Height:         t.size,
		Type:           bimg.PNG,
		Embed:          true,
		Enlarge:        true,
		Background:     t.background,
		Interpretation: bimg.InterpretationSRGB,
	})
	if err != nil {
		return nil, fmt.Errorf("thumbnailing to %dpx: %w", t.size, err)
	}
	return out, nil
}

// parseHexColor converts a hex color string (with or without #) to RGB values.
func parseHexColor(hex string) (uint8, uint8, uint8, error) {
	hex = strings.TrimPrefix(hex, "#")

	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex color: %q (expected 6 characters)", hex)
	}

	var r, g, b uint8
	_, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parsing hex color %q: %w", hex, err)
	}

	return r, g, b, nil
}
