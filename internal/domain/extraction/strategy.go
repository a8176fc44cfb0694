package extraction

import (
	"github.com/labelscan/label-scanner/internal/domain"
)

// ExtractionStrategy defines the interface every payload format evaluator implements
//
// A strategy either decides (returns the final fields and true, which stops the
// cascade) or abstains (returns false, and the next strategy is consulted).
// Each strategy owns its own short-circuit rule:
//   - Delimited decides only when it produced an order or package id
//   - Object and URL decide as soon as their syntax parses, even with no matches
//   - KeyValue decides only when at least one field is non-empty
//   - Pattern is terminal and always decides
type ExtractionStrategy interface {
	// Extract evaluates payload and reports whether this strategy decided
	Extract(payload string) (domain.ExtractedFields, bool)

	// Name returns the human-readable name of this strategy
	Name() string
}

// Alias lists shared by the structured strategies. Keys are compared lower-cased.
var (
	orderAliases    = []string{"auftrag", "order", "bestellung"}
	packageAliases  = []string{"paket", "package", "sendung"}
	customerAliases = []string{"kunde", "customer", "client", "name"}
)
