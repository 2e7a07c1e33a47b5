package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/storage"
	"github.com/cppla/postboard/utils"
)

// ImageStore transcodes uploads and persists them. With a nil blob backend the
// payload is kept in the image row.
type ImageStore struct {
	db    *gorm.DB
	blobs storage.ObjectStorage
	opts  utils.TranscodeOptions
}

// NewImageStore creates an ImageStore.
func NewImageStore(db *gorm.DB, blobs storage.ObjectStorage, opts utils.TranscodeOptions) *ImageStore {
	return &ImageStore{db: db, blobs: blobs, opts: opts}
}

// Upload is a raw image as received from a client.
type Upload struct {
	Filename  string
	MimeType  string
	Data      []byte
	Type      string
	RelatedID string
}

// ImageFilter narrows List. Empty fields do not filter.
type ImageFilter struct {
	Type      string
	RelatedID string
}

// Ingest transcodes the upload to a width-bounded JPEG and stores it.
func (s *ImageStore) Ingest(ctx context.Context, in Upload) (*models.Image, error) {
	if len(in.Data) == 0 {
		return nil, invalid("image", "is required")
	}
	out, err := utils.TranscodeImage(in.Data, s.opts)
	if err != nil {
		return nil, err
	}

	image := models.Image{
		Filename:    in.Filename,
		ContentType: utils.TranscodedContentType,
		Size:        int64(len(out.Data)),
		Width:       out.Width,
		Height:      out.Height,
		Type:        strings.TrimSpace(in.Type),
		RelatedID:   strings.TrimSpace(in.RelatedID),
	}
	if s.blobs == nil {
		image.Data = out.Data
	} else {
		image.ObjectKey = "images/" + uuid.NewString() + ".jpg"
		if err := s.blobs.Put(ctx, image.ObjectKey, bytes.NewReader(out.Data), image.Size, image.ContentType); err != nil {
			return nil, fmt.Errorf("store image blob: %w", err)
		}
	}

	if err := s.db.WithContext(ctx).Create(&image).Error; err != nil {
		if image.ObjectKey != "" {
			if delErr := s.blobs.Delete(ctx, image.ObjectKey); delErr != nil {
				utils.Sugar.Warnf("orphaned image blob key=%s err=%v", image.ObjectKey, delErr)
			}
		}
		return nil, err
	}
	return &image, nil
}

// List returns image metadata matching filter, newest first.
func (s *ImageStore) List(ctx context.Context, filter ImageFilter) ([]models.Image, error) {
	query := s.db.WithContext(ctx).Omit("data")
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.RelatedID != "" {
		query = query.Where("related_id = ?", filter.RelatedID)
	}
	images := []models.Image{}
	if err := query.Order("created_at DESC, id DESC").Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// Open returns the image metadata and a reader over its payload.
func (s *ImageStore) Open(ctx context.Context, id uint) (*models.Image, io.ReadCloser, error) {
	var image models.Image
	if err := s.db.WithContext(ctx).First(&image, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if image.ObjectKey == "" {
		return &image, io.NopCloser(bytes.NewReader(image.Data)), nil
	}
	if s.blobs == nil {
		return nil, nil, fmt.Errorf("image %d is stored in object storage but no backend is configured", id)
	}
	r, err := s.blobs.Get(ctx, image.ObjectKey)
	if err != nil {
		return nil, nil, err
	}
	return &image, r, nil
}
