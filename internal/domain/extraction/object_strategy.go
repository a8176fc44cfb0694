package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/labelscan/label-scanner/internal/domain"
)

var errNotObject = errors.New("payload is not a JSON object")

// ObjectStrategy reads payloads that are a single JSON object
type ObjectStrategy struct{}

// NewObjectStrategy creates a new structured object strategy
func NewObjectStrategy() *ObjectStrategy {
	return &ObjectStrategy{}
}

// Name returns the strategy name
func (s *ObjectStrategy) Name() string {
	return "Structured Object"
}

// Extract decides whenever the payload parses as an object, even when no key
// is recognised. An unrecognised object yields three empty fields.
func (s *ObjectStrategy) Extract(payload string) (domain.ExtractedFields, bool) {
	fields := domain.ExtractedFields{RawPayload: payload}

	pairs, err := decodeObject(payload)
	if err != nil {
		return fields, false
	}

	for _, p := range pairs {
		key := strings.ToLower(p.key)
		// A key feeds at most one field; order aliases are checked first.
		switch {
		case containsAny(key, orderAliases):
			fields.OrderID = p.value
		case containsAny(key, packageAliases):
			fields.PackageID = p.value
		case containsAny(key, customerAliases):
			fields.CustomerName = p.value
		}
	}

	return fields, true
}

type objectPair struct {
	key   string
	value string
}

// decodeObject walks the top-level members of a JSON object in document order.
// A repeated key keeps the position of its first occurrence and the value of
// its last one, so it is matched once.
func decodeObject(payload string) ([]objectPair, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	var pairs []objectPair
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errNotObject
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		value := renderValue(raw)
		if i, dup := seen[key]; dup {
			pairs[i].value = value
			continue
		}
		seen[key] = len(pairs)
		pairs = append(pairs, objectPair{key: key, value: value})
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	// trailing data after the object makes the payload something else
	if _, err := dec.Token(); err != io.EOF {
		return nil, errNotObject
	}

	return pairs, nil
}

// renderValue returns strings verbatim and everything else as compact JSON
func renderValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
