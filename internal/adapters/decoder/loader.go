package decoder

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/labelscan/label-scanner/internal/domain"
)

// supportedExtensions lists the still-image formats accepted for scanning
var supportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
}

// IsSupportedImage reports whether path has a scannable image extension
func IsSupportedImage(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// LoadImage reads and decodes an image file, honouring EXIF orientation so
// phone photos of labels are upright
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %v: %w", path, err, domain.ErrDecodeUnavailable)
	}
	return img, nil
}
