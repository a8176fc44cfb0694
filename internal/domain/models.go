package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDecodeUnavailable is returned by decoder adapters when an image cannot be
// loaded or read at all. It is the caller's concern; the core never raises it.
var ErrDecodeUnavailable = errors.New("decode unavailable")

// ExtractedFields holds the shipping fields recovered from one payload
//
// Every derived field is a pure function of RawPayload. An empty string means
// no strategy produced the field (a parse miss, not an error).
type ExtractedFields struct {
	OrderID      string `json:"order_id"`
	PackageID    string `json:"package_id"`
	CustomerName string `json:"customer_name"`
	RawPayload   string `json:"raw_payload"`
}

// HasAny reports whether at least one derived field is non-empty
func (f ExtractedFields) HasAny() bool {
	return f.OrderID != "" || f.PackageID != "" || f.CustomerName != ""
}

// DetectionEvent is a one-shot "new label" notification emitted by the gate
//
// Events are values: once emitted they are never mutated.
type DetectionEvent struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  uuid.UUID       `json:"session_id"`
	Fields     ExtractedFields `json:"fields"`
	DetectedAt time.Time       `json:"detected_at"`
}

// Point is an integer pixel coordinate of a symbol boundary
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DecodedSymbol is one raw payload recovered from an image, with its boundary
type DecodedSymbol struct {
	Payload []byte  `json:"payload"`
	Polygon []Point `json:"polygon"`
}

// ScanResult is the outcome of a one-shot image scan (no deduplication)
type ScanResult struct {
	Fields  ExtractedFields `json:"fields"`
	Polygon []Point         `json:"polygon"`
}

// SessionSummary describes a finished scan session
type SessionSummary struct {
	SessionID uuid.UUID `json:"session_id"`
	Frames    int       `json:"frames"`
	Symbols   int       `json:"symbols"`
	Events    int       `json:"events"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
