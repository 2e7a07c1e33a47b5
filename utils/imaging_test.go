package utils

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTranscodeImageBoundsWidth(t *testing.T) {
	raw := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 1000, 500)))

	out, err := TranscodeImage(raw, TranscodeOptions{MaxWidth: 800, Quality: 80})
	require.NoError(t, err)
	assert.Equal(t, 800, out.Width)
	assert.Equal(t, 400, out.Height)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
}

func TestTranscodeImageKeepsSmallImages(t *testing.T) {
	raw := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 120, 80)))
	out, err := TranscodeImage(raw, TranscodeOptions{MaxWidth: 800})
	require.NoError(t, err)
	assert.Equal(t, 120, out.Width)
	assert.Equal(t, 80, out.Height)
}

func TestTranscodeImageFlattensTransparency(t *testing.T) {
	// fully transparent input must come out white, not black
	raw := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 16, 16)))
	out, err := TranscodeImage(raw, TranscodeOptions{MaxWidth: 800, Quality: 100})
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(8, 8).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestTranscodeImageAcceptsGIF(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 40, 20), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, pal, nil))

	out, err := TranscodeImage(buf.Bytes(), TranscodeOptions{MaxWidth: 20})
	require.NoError(t, err)
	assert.Equal(t, 20, out.Width)
	assert.Equal(t, 10, out.Height)
}

func TestTranscodeImageRejectsGarbage(t *testing.T) {
	_, err := TranscodeImage([]byte("definitely not an image"), TranscodeOptions{MaxWidth: 800})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// pngHeaderOnly returns a PNG whose IHDR claims width x height while the pixel data
// stays tiny, the shape of a decompression bomb.
func pngHeaderOnly(t *testing.T, width, height uint32) []byte {
	t.Helper()
	raw := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, 1)))
	// signature(8) length(4) "IHDR"(4) data(13) crc(4)
	binary.BigEndian.PutUint32(raw[16:20], width)
	binary.BigEndian.PutUint32(raw[20:24], height)
	binary.BigEndian.PutUint32(raw[29:33], crc32.ChecksumIEEE(raw[12:29]))
	return raw
}

func TestTranscodeImageRejectsOversizedSource(t *testing.T) {
	raw := pngHeaderOnly(t, 12000, 12000)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 12000, cfg.Width)

	_, err = TranscodeImage(raw, TranscodeOptions{MaxWidth: 800, Quality: 80, MaxPixels: 25_000_000})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestTranscodeImagePixelCapIsInclusive(t *testing.T) {
	raw := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 100, 50)))

	_, err := TranscodeImage(raw, TranscodeOptions{MaxWidth: 800, MaxPixels: 5000})
	require.NoError(t, err)

	_, err = TranscodeImage(raw, TranscodeOptions{MaxWidth: 800, MaxPixels: 4999})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
