package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/internal/domain"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/store"
)

type imageAdapter struct {
	blobs     store.BlobStore
	captioner llm.Captioner
	maxBytes  int64
	newID     func() string
}

// NewImageAdapter stores uploads in blobs and captions them. A nil captioner
// makes every upload fail with a configuration error before anything is written.
func NewImageAdapter(blobs store.BlobStore, captioner llm.Captioner, maxBytes int64) Adapter {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &imageAdapter{
		blobs:     blobs,
		captioner: captioner,
		maxBytes:  maxBytes,
		newID:     id.Upload,
	}
}

func (a *imageAdapter) SourceType() model.SourceType {
	return model.SourceTypeImage
}

func (a *imageAdapter) FetchAndNormalize(ctx context.Context, projectKey string, cfg SourceConfig) (*Batch, error) {
	if projectKey == "" {
		return nil, domain.Validation("project_key is required")
	}
	if cfg.Content == nil {
		return nil, domain.Validation("no file provided")
	}
	if a.captioner == nil {
		return nil, domain.NotConfigured("image captioning")
	}

	data, err := readLimited(cfg.Content, a.maxBytes)
	if err != nil {
		return nil, err
	}

	mimeType := detectImageType(cfg.ContentType, data)
	if mimeType == "" {
		return nil, domain.Validation("file must be an image")
	}

	uploadID := a.newID()
	ref, err := a.blobs.Put(ctx, projectKey, uploadID+imageExtension(mimeType, cfg.Filename), bytes.NewReader(data), a.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("storing image: %w", err)
	}

	description, err := a.captioner.Describe(ctx, data, mimeType)
	if err == nil && strings.TrimSpace(description) == "" {
		err = fmt.Errorf("captioning returned an empty description")
	}
	if err != nil {
		a.discard(ctx, ref.Path)
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, domain.Transient("image.describe", "image captioning failed, try again", err)
	}

	metadata := map[string]string{
		"image_path":  ref.Path,
		"mime_type":   mimeType,
		"size_bytes":  strconv.FormatInt(ref.Size, 10),
		"sha256":      ref.SHA256,
		"description": description,
		"filename":    cfg.Filename,
	}
	if cfg.Filename == "" {
		metadata["filename"] = filepath.Base(ref.Path)
	}

	return &Batch{
		Documents: []*model.Document{{
			ProjectKey: projectKey,
			SourceType: model.SourceTypeImage,
			SourceID:   uploadID,
			Text:       description,
			Metadata:   metadata,
		}},
		Discard: func(ctx context.Context, doc *model.Document) {
			a.discard(ctx, doc.Metadata["image_path"])
		},
	}, nil
}

func (a *imageAdapter) discard(ctx context.Context, path string) {
	if err := a.blobs.Delete(ctx, path); err != nil {
		slog.WarnContext(ctx, "failed to remove image blob", "path", path, "error", err)
	}
}

// detectImageType trusts the sniffed type over the declared one.
func detectImageType(declared string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	// DetectContentType does not know every image format (e.g. svg is text/xml).
	if base, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(base, "image/") && len(data) > 0 {
		return base
	}
	return ""
}

var imageExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/svg+xml": ".svg",
}

// imageExtension keeps the uploaded extension only if it matches the content.
func imageExtension(mimeType, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && slices.Contains(exts, ext) {
		return ext
	}
	if ext, ok := imageExtensions[mimeType]; ok {
		return ext
	}
	return ".img"
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.Validation(fmt.Sprintf("file too large, maximum size is %d MB", maxBytes>>20))
	}
	return data, nil
}
