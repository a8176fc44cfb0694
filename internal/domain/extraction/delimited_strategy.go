package extraction

import (
	"strings"

	"github.com/labelscan/label-scanner/internal/domain"
)

const (
	fieldSeparator = "^"

	// CustomerIDPrefix labels the customer number carried by delimited payloads
	CustomerIDPrefix = "Kunden-ID: "
)

// DelimitedStrategy reads the positional carrier format
// type^order^customer^package^count^sku
type DelimitedStrategy struct{}

// NewDelimitedStrategy creates a new positional format strategy
func NewDelimitedStrategy() *DelimitedStrategy {
	return &DelimitedStrategy{}
}

// Name returns the strategy name
func (s *DelimitedStrategy) Name() string {
	return "Delimited Positional"
}

// Extract splits on '^' and decides only if an order or package id came out
func (s *DelimitedStrategy) Extract(payload string) (domain.ExtractedFields, bool) {
	fields := domain.ExtractedFields{RawPayload: payload}
	if !strings.Contains(payload, fieldSeparator) {
		return fields, false
	}

	parts := strings.Split(payload, fieldSeparator)
	if len(parts) < 4 {
		return fields, false
	}

	fields.OrderID = parts[1]
	fields.PackageID = parts[3]
	fields.CustomerName = CustomerIDPrefix + parts[2]

	// "^^x^" style payloads carry the separator but no identifiers
	if fields.OrderID == "" && fields.PackageID == "" {
		return domain.ExtractedFields{RawPayload: payload}, false
	}
	return fields, true
}
