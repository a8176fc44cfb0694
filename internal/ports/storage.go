package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/labelscan/label-scanner/internal/domain"
)

// DetectionSink consumes detection events emitted by a scan session
type DetectionSink interface {
	// SaveDetection records one event; events arrive in emission order
	SaveDetection(ctx context.Context, event *domain.DetectionEvent) error
}

// DetectionStore is a sink that can also be queried
type DetectionStore interface {
	DetectionSink

	// ListDetections returns a session's events, oldest first
	ListDetections(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.DetectionEvent, error)

	// Lifecycle
	Close() error
}
