package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/postboard/realtime"
	"github.com/cppla/postboard/store"
	"github.com/cppla/postboard/utils"
)

// profileImageType tags uploads that become a user's profile picture.
const profileImageType = "profile"

// multipartSlack leaves room for boundaries and form fields around the file part.
const multipartSlack = 64 << 10

// ImageController accepts uploads and serves stored images.
type ImageController struct {
	images   *store.ImageStore
	events   realtime.Broadcaster
	maxBytes int64
}

// NewImageController creates a new ImageController instance.
func NewImageController(images *store.ImageStore, events realtime.Broadcaster, maxBytes int64) *ImageController {
	return &ImageController{images: images, events: events, maxBytes: maxBytes}
}

// Upload ingests the multipart "image" field with optional type and relatedId.
func (i *ImageController) Upload(ctx *gin.Context) {
	if i.maxBytes > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, i.maxBytes+multipartSlack)
	}
	file, err := ctx.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "image exceeds upload limit")
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40040, "image file is required")
		return
	}
	if i.maxBytes > 0 && file.Size > i.maxBytes {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "image exceeds upload limit")
		return
	}

	f, err := file.Open()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "error uploading image")
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "error uploading image")
		return
	}

	image, err := i.images.Ingest(ctx.Request.Context(), store.Upload{
		Filename:  file.Filename,
		MimeType:  file.Header.Get("Content-Type"),
		Data:      raw,
		Type:      ctx.PostForm("type"),
		RelatedID: ctx.PostForm("relatedId"),
	})
	if err != nil {
		respondError(ctx, err, 50040, "error uploading image")
		return
	}

	if image.Type == profileImageType && image.RelatedID != "" {
		i.events.Broadcast("userProfileImage", gin.H{
			"userId":  image.RelatedID,
			"imageId": image.ID,
		})
	}
	utils.Respond(ctx, http.StatusCreated, image)
}

// List returns image metadata filtered by type and relatedId.
func (i *ImageController) List(ctx *gin.Context) {
	images, err := i.images.List(ctx.Request.Context(), store.ImageFilter{
		Type:      ctx.Query("type"),
		RelatedID: ctx.Query("relatedId"),
	})
	if err != nil {
		respondError(ctx, err, 50041, "error retrieving images")
		return
	}
	utils.Success(ctx, images)
}

// Serve streams the stored image binary.
func (i *ImageController) Serve(ctx *gin.Context) {
	imageID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	image, body, err := i.images.Open(ctx.Request.Context(), imageID)
	if err != nil {
		respondError(ctx, err, 50042, "error retrieving image")
		return
	}
	defer body.Close()

	ctx.DataFromReader(http.StatusOK, image.Size, image.ContentType, body, map[string]string{
		"Cache-Control":       "public, max-age=31536000, immutable",
		"Content-Disposition": "inline; filename=" + strconv.Quote(image.Filename),
	})
}
