package store

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/postboard/utils"
)

var testTranscode = utils.TranscodeOptions{MaxWidth: 800, Quality: 80}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// memoryBlobs is an in-process object store.
type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: map[string][]byte{}}
}

func (m *memoryBlobs) EnsureBucket(context.Context) error { return nil }

func (m *memoryBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return nil
}

func (m *memoryBlobs) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memoryBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryBlobs) Bucket() string { return "test" }

func TestIngestInline(t *testing.T) {
	images := NewImageStore(newTestDB(t), nil, testTranscode)
	ctx := context.Background()

	stored, err := images.Ingest(ctx, Upload{
		Filename:  "wide.png",
		MimeType:  "image/png",
		Data:      pngBytes(t, 1600, 400),
		Type:      "post",
		RelatedID: "42",
	})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", stored.ContentType)
	assert.Equal(t, 800, stored.Width)
	assert.Equal(t, 200, stored.Height)
	assert.Empty(t, stored.ObjectKey)
	assert.Equal(t, int64(len(stored.Data)), stored.Size)

	meta, body, err := images.Open(ctx, stored.ID)
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, "wide.png", meta.Filename)
	decoded, err := jpeg.Decode(body)
	require.NoError(t, err)
	assert.Equal(t, 800, decoded.Bounds().Dx())
}

func TestIngestRejectsUnsupportedFormat(t *testing.T) {
	images := NewImageStore(newTestDB(t), nil, testTranscode)
	_, err := images.Ingest(context.Background(), Upload{Filename: "notes.txt", Data: []byte("plain text")})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = images.Ingest(context.Background(), Upload{Filename: "empty.png"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestIngestToObjectStorage(t *testing.T) {
	blobs := newMemoryBlobs()
	images := NewImageStore(newTestDB(t), blobs, testTranscode)
	ctx := context.Background()

	stored, err := images.Ingest(ctx, Upload{Filename: "small.png", Data: pngBytes(t, 100, 50)})
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Width, "small images are not upscaled")
	assert.NotEmpty(t, stored.ObjectKey)
	assert.Nil(t, stored.Data)
	assert.Contains(t, blobs.objects, stored.ObjectKey)

	_, body, err := images.Open(ctx, stored.ID)
	require.NoError(t, err)
	defer body.Close()
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, blobs.objects[stored.ObjectKey], b)
}

func TestListImages(t *testing.T) {
	images := NewImageStore(newTestDB(t), nil, testTranscode)
	ctx := context.Background()
	raw := pngBytes(t, 10, 10)
	for _, in := range []Upload{
		{Filename: "a.png", Data: raw, Type: "profile", RelatedID: "1"},
		{Filename: "b.png", Data: raw, Type: "profile", RelatedID: "2"},
		{Filename: "c.png", Data: raw, Type: "post", RelatedID: "1"},
	} {
		_, err := images.Ingest(ctx, in)
		require.NoError(t, err)
	}

	all, err := images.List(ctx, ImageFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, img := range all {
		assert.Nil(t, img.Data, "listing omits payloads")
	}

	profiles, err := images.List(ctx, ImageFilter{Type: "profile"})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	one, err := images.List(ctx, ImageFilter{Type: "profile", RelatedID: "2"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "b.png", one[0].Filename)

	_, _, err = images.Open(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
