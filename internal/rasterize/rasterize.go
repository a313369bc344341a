// Package rasterize converts PDF documents into per-page images for the
// vision model.
package rasterize

import (
	"context"
	"errors"

	"docchat/internal/domain"
)

// ErrNoPages reports a document that rendered to zero pages.
var ErrNoPages = errors.New("document produced no pages")

// PageSequence is a finite, random-access view over the rendered pages of a
// single document. Page may be called repeatedly and in any order; image
// bytes are loaded lazily per call. Close releases the backing files.
type PageSequence interface {
	Len() int
	Page(ctx context.Context, i int) (domain.PageImage, error)
	Close() error
}

// Rasterizer renders every page of a PDF document to an image.
type Rasterizer interface {
	Rasterize(ctx context.Context, doc domain.Document) (PageSequence, error)
}
