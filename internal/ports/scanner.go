package ports

import (
	"context"
	"image"

	"github.com/labelscan/label-scanner/internal/domain"
)

// SymbolDecoder locates and decodes 2D barcodes in a raster image
type SymbolDecoder interface {
	// Decode returns zero or more symbols; the order is whatever the
	// underlying reader produces
	Decode(ctx context.Context, img image.Image) ([]domain.DecodedSymbol, error)
}

// FrameSource yields frames for a live scan session
type FrameSource interface {
	// NextFrame returns the next frame, or io.EOF when the source is exhausted
	NextFrame(ctx context.Context) (image.Image, error)
}
