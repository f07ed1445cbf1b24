package handler

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/store"
)

const imageCSP = "default-src 'none'; img-src 'self' data:; style-src 'unsafe-inline'; sandbox"

type ImageHandler struct {
	blobs store.BlobStore
}

func NewImageHandler(blobs store.BlobStore) *ImageHandler {
	return &ImageHandler{blobs: blobs}
}

// Serve streams a stored upload back to the client.
func (h *ImageHandler) Serve(c *gin.Context) {
	name := c.Param("name")
	if store.SanitizeBlobName(name) != name {
		respondError(c, domain.NotFound("image not found"))
		return
	}
	path := filepath.Join(store.SanitizeBlobName(c.Param("project_key")), name)

	f, err := h.blobs.Open(c.Request.Context(), path)
	if err != nil {
		if errors.Is(err, store.ErrBlobNotFound) || errors.Is(err, store.ErrBlobPathTraverse) || errors.Is(err, store.ErrInvalidBlobPath) {
			respondError(c, domain.NotFound("image not found"))
			return
		}
		respondError(c, err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=86400, immutable")
	// Uploads are untrusted. An SVG opened directly must not run script on this origin.
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", imageCSP)
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}
