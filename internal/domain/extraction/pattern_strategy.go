package extraction

import (
	"regexp"
	"strings"

	"github.com/labelscan/label-scanner/internal/domain"
)

const customerMarker = "KUNDENNAME:"

var (
	// e.g. NL-2581949
	orderPattern = regexp.MustCompile(`[A-Z]{2}-\d+`)

	// 10 to 18 digits, e.g. 04002338535
	packagePattern = regexp.MustCompile(`\d{10,18}`)

	referencePattern = regexp.MustCompile(`Referenz:\s+([A-Za-z0-9-]+)`)
	trackingPattern  = regexp.MustCompile(`Tracking:\s+(\d+)`)

	customerEndMarkers = []string{"PAKET-NR", "AUFTRAG", "\n"}
)

// PatternStrategy infers fields from unlabeled text. It is the terminal
// strategy of the cascade and always decides.
type PatternStrategy struct{}

// NewPatternStrategy creates a new heuristic fallback strategy
func NewPatternStrategy() *PatternStrategy {
	return &PatternStrategy{}
}

// Name returns the strategy name
func (s *PatternStrategy) Name() string {
	return "Pattern Fallback"
}

// Extract fills whatever it can find; an incomplete result is still final
func (s *PatternStrategy) Extract(payload string) (domain.ExtractedFields, bool) {
	fields := domain.ExtractedFields{RawPayload: payload}
	fillFromPatterns(&fields, payload)
	return fields, true
}

// fillFromPatterns populates only the fields that are still empty
func fillFromPatterns(fields *domain.ExtractedFields, payload string) {
	if fields.OrderID == "" {
		fields.OrderID = orderPattern.FindString(payload)
	}

	if fields.PackageID == "" {
		fields.PackageID = packagePattern.FindString(payload)
	}

	if fields.CustomerName == "" {
		fields.CustomerName = customerAfterMarker(payload)
	}

	if fields.OrderID == "" {
		if m := referencePattern.FindStringSubmatch(payload); m != nil {
			fields.OrderID = m[1]
		}
	}

	if fields.PackageID == "" {
		if m := trackingPattern.FindStringSubmatch(payload); m != nil {
			fields.PackageID = m[1]
		}
	}
}

// customerAfterMarker returns the text following KUNDENNAME: up to the next
// end marker, trimmed. Each end marker is applied in turn.
func customerAfterMarker(payload string) string {
	_, rest, ok := strings.Cut(payload, customerMarker)
	if !ok {
		return ""
	}
	// a second marker ends the first one's value
	rest, _, _ = strings.Cut(rest, customerMarker)

	name := strings.TrimSpace(rest)
	for _, marker := range customerEndMarkers {
		if before, _, found := strings.Cut(name, marker); found {
			name = strings.TrimSpace(before)
		}
	}
	return name
}
