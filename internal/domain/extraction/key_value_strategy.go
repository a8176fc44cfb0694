package extraction

import (
	"strings"

	"github.com/labelscan/label-scanner/internal/domain"
)

// Line labels extend the shared aliases with the German label captions
var (
	orderLabels    = append(append([]string{}, orderAliases...), "auftrags-nr", "auftragsnr", "referenz")
	packageLabels  = append(append([]string{}, packageAliases...), "paket-nr", "paketnr", "tracking")
	customerLabels = append(append([]string{}, customerAliases...), "kundenname")
)

// KeyValueStrategy reads "Label: value" lines as printed on label text blocks
type KeyValueStrategy struct{}

// NewKeyValueStrategy creates a new line-oriented key:value strategy
func NewKeyValueStrategy() *KeyValueStrategy {
	return &KeyValueStrategy{}
}

// Name returns the strategy name
func (s *KeyValueStrategy) Name() string {
	return "Line Key:Value"
}

// Extract decides only if at least one field ended up non-empty
func (s *KeyValueStrategy) Extract(payload string) (domain.ExtractedFields, bool) {
	fields := domain.ExtractedFields{RawPayload: payload}

	for _, line := range strings.Split(payload, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		// unlike the object format, one line may feed several fields
		if containsAny(key, orderLabels) {
			fields.OrderID = value
		}
		if containsAny(key, packageLabels) {
			fields.PackageID = value
		}
		if containsAny(key, customerLabels) {
			fields.CustomerName = value
		}
	}

	return fields, fields.HasAny()
}
