package extraction

import (
	"github.com/rs/zerolog"

	"github.com/labelscan/label-scanner/internal/domain"
)

// Parser extracts shipping fields from raw payloads using an ordered cascade
//
// Strategies are evaluated in priority order and the first one that decides
// wins; lower strategies are never consulted. The cascade is:
//  1. Delimited positional (type^order^customer^package^...)
//  2. Structured object (JSON)
//  3. Query-string URL
//  4. Line key:value
//  5. Pattern fallback (terminal)
//
// Parser holds no mutable state and is safe for concurrent use.
type Parser struct {
	strategies []ExtractionStrategy
	log        zerolog.Logger
}

// ParserOption configures a Parser
type ParserOption func(*Parser)

// WithLogger sets the logger used for debug output of recovered strategy faults
func WithLogger(l zerolog.Logger) ParserOption {
	return func(p *Parser) { p.log = l }
}

// WithStrategies replaces the standard cascade. The last strategy should always decide.
func WithStrategies(strategies ...ExtractionStrategy) ParserOption {
	return func(p *Parser) { p.strategies = strategies }
}

// NewParser creates a parser with the standard five-step cascade
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		strategies: []ExtractionStrategy{
			NewDelimitedStrategy(),
			NewObjectStrategy(),
			NewURLStrategy(),
			NewKeyValueStrategy(),
			NewPatternStrategy(),
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse runs the cascade on payload. It never fails: a payload nothing
// recognises comes back with empty fields and RawPayload set.
func (p *Parser) Parse(payload string) domain.ExtractedFields {
	for _, strategy := range p.strategies {
		if fields, ok := p.try(strategy, payload); ok {
			fields.RawPayload = payload
			return fields
		}
	}
	return domain.ExtractedFields{RawPayload: payload}
}

// ParseBytes decodes raw symbol bytes permissively and parses the text
func (p *Parser) ParseBytes(payload []byte) domain.ExtractedFields {
	return p.Parse(DecodePayload(payload))
}

// try evaluates one strategy; a panic inside it counts as no decision
func (p *Parser) try(strategy ExtractionStrategy, payload string) (fields domain.ExtractedFields, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Debug().
				Str("strategy", strategy.Name()).
				Interface("panic", r).
				Msg("strategy failed, falling through")
			fields, ok = domain.ExtractedFields{}, false
		}
	}()
	return strategy.Extract(payload)
}
