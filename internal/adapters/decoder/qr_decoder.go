package decoder

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/rs/zerolog"

	"github.com/labelscan/label-scanner/internal/domain"
)

// QRDecoder implements ports.SymbolDecoder for QR codes using gozxing
//
// Frames are converted to grayscale first, which improves the hit rate on
// colour camera frames. The reader finds at most one symbol per frame.
type QRDecoder struct {
	hints map[gozxing.DecodeHintType]interface{}
	log   zerolog.Logger
}

// NewQRDecoder creates a decoder. tryHarder trades speed for accuracy.
func NewQRDecoder(tryHarder bool, log zerolog.Logger) *QRDecoder {
	hints := map[gozxing.DecodeHintType]interface{}{}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return &QRDecoder{hints: hints, log: log}
}

// Decode returns the symbols found in img. A frame without a readable symbol
// is not an error; it simply yields no symbols.
func (d *QRDecoder) Decode(ctx context.Context, img image.Image) ([]domain.DecodedSymbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image: %w", domain.ErrDecodeUnavailable)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(imaging.Grayscale(img))
	if err != nil {
		return nil, fmt.Errorf("failed to binarize image: %v: %w", err, domain.ErrDecodeUnavailable)
	}

	// a fresh reader per call; gozxing readers keep per-decode state
	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		// not found, checksum and format failures all mean "nothing readable here"
		d.log.Trace().Err(err).Msg("no readable symbol in frame")
		return nil, nil
	}

	return []domain.DecodedSymbol{{
		Payload: []byte(result.GetText()),
		Polygon: toPolygon(result.GetResultPoints()),
	}}, nil
}

func toPolygon(points []gozxing.ResultPoint) []domain.Point {
	polygon := make([]domain.Point, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		polygon = append(polygon, domain.Point{
			X: int(math.Round(p.GetX())),
			Y: int(math.Round(p.GetY())),
		})
	}
	return polygon
}
