package frames

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/labelscan/label-scanner/internal/adapters/decoder"
)

// DirectorySource implements ports.FrameSource over still frames in a directory
//
// Frames are played back in filename order, each exactly once. It stands in
// for a camera: recordings exported as frame_0001.png, frame_0002.png, ...
// replay the same per-frame stream a live session would see.
type DirectorySource struct {
	paths []string
	next  int
	log   zerolog.Logger
}

// NewDirectorySource lists the supported image files of dir
func NewDirectorySource(dir string, log zerolog.Logger) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !decoder.IsSupportedImage(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	return &DirectorySource{paths: paths, log: log}, nil
}

// Len returns the number of frames in the directory
func (s *DirectorySource) Len() int {
	return len(s.paths)
}

// NextFrame loads the next frame. Unreadable files are skipped with a warning,
// matching a camera that drops a frame.
func (s *DirectorySource) NextFrame(ctx context.Context) (image.Image, error) {
	for s.next < len(s.paths) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := s.paths[s.next]
		s.next++

		img, err := decoder.LoadImage(path)
		if err != nil {
			s.log.Warn().Err(err).Str("frame", path).Msg("skipping unreadable frame")
			continue
		}
		return img, nil
	}
	return nil, io.EOF
}
