// Package imaging decodes signature rasters and normalizes them to opaque
// 8-bit RGB, the form embedded into PDF image XObjects.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// MaxSide bounds the longest raster side kept for embedding. Larger
// signatures are downsampled.
const MaxSide = 2048

// MaxPixels bounds the declared size of an image accepted for decoding.
const MaxPixels = 40 << 20

var (
	ErrInvalidDataURL = errors.New("invalid data URL")
	ErrEmptyImage     = errors.New("image has no pixels")
	ErrImageTooLarge  = errors.New("image too large")
)

// DecodeDataURL returns the bytes of a "<header>,<base64>" data URL. The
// header is not inspected beyond the first comma.
func DecodeDataURL(dataURL string) ([]byte, error) {
	_, body, ok := strings.Cut(dataURL, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing comma separator", ErrInvalidDataURL)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		// canvas exports occasionally drop padding
		raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
		data = raw
	}
	return data, nil
}

// Decode decodes PNG, JPEG, GIF, BMP or WebP bytes. The header is checked
// first so an image declaring more than MaxPixels is never allocated.
func Decode(data []byte) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, ErrEmptyImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, format, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, format, ErrEmptyImage
	}
	return img, format, nil
}

// Flatten composites img over a white background, removing transparency.
// Transparent regions would otherwise render black in some viewers.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), &image.Uniform{color.White}, image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Over)
	return dst
}

// Raster is an opaque image as packed 8-bit RGB samples, row-major from the
// top row.
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

// NewRaster flattens img and packs it, downsampling when a side exceeds
// MaxSide.
func NewRaster(img image.Image) *Raster {
	flat := Flatten(img)
	flat = limit(flat, MaxSide)

	w, h := flat.Bounds().Dx(), flat.Bounds().Dy()
	pix := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := flat.Pix[y*flat.Stride : y*flat.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			pix = append(pix, row[x], row[x+1], row[x+2])
		}
	}
	return &Raster{Width: w, Height: h, Pix: pix}
}

// Load decodes data and returns its opaque raster.
func Load(data []byte) (*Raster, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return NewRaster(img), nil
}

// LoadDataURL decodes a data URL payload into a raster.
func LoadDataURL(dataURL string) (*Raster, error) {
	data, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Image returns the raster as an image.RGBA.
func (r *Raster) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i, j := 0, 0; i < len(r.Pix); i, j = i+3, j+4 {
		img.Pix[j] = r.Pix[i]
		img.Pix[j+1] = r.Pix[i+1]
		img.Pix[j+2] = r.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// EncodePNG flattens img and encodes it as an opaque PNG, the format saved
// signatures are stored in.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Flatten(img)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func limit(img *image.RGBA, maxSide int) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}
	scale := float64(maxSide) / float64(max(w, h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
