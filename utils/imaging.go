package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	// Registered decoders for accepted upload formats.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned when an upload cannot be decoded as an image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// TranscodeOptions bounds the normalized output.
type TranscodeOptions struct {
	MaxWidth int
	Quality  int
	// MaxPixels caps the decoded source area (width*height). Zero means no cap.
	MaxPixels int
}

// TranscodedImage is the normalized JPEG rendition of an upload.
type TranscodedImage struct {
	Data   []byte
	Width  int
	Height int
}

// ContentType of every transcoded image.
const TranscodedContentType = "image/jpeg"

// TranscodeImage decodes raw, scales it down to at most opts.MaxWidth keeping the
// aspect ratio, flattens transparency onto white and re-encodes as JPEG.
// The header is inspected first so oversized sources are refused before their bitmap
// is allocated.
func TranscodeImage(raw []byte, opts TranscodeOptions) (TranscodedImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return TranscodedImage{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return TranscodedImage{}, fmt.Errorf("%w: empty image", ErrUnsupportedFormat)
	}
	if opts.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(opts.MaxPixels) {
		return TranscodedImage{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedFormat, cfg.Width, cfg.Height, opts.MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return TranscodedImage{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return TranscodedImage{}, fmt.Errorf("%w: empty image", ErrUnsupportedFormat)
	}
	if opts.MaxWidth > 0 && w > opts.MaxWidth {
		h = max(1, h*opts.MaxWidth/w)
		w = opts.MaxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return TranscodedImage{}, err
	}
	return TranscodedImage{Data: buf.Bytes(), Width: w, Height: h}, nil
}
