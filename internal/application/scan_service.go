package application

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/labelscan/label-scanner/internal/domain"
	"github.com/labelscan/label-scanner/internal/domain/extraction"
	"github.com/labelscan/label-scanner/internal/domain/gate"
	"github.com/labelscan/label-scanner/internal/ports"
)

// SessionConfig tunes the live detection loop
type SessionConfig struct {
	Cooldown     time.Duration
	HistorySize  int
	TickInterval time.Duration // zero processes frames back to back
}

// DefaultSessionConfig mirrors the gate defaults at ~30 frames per second
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Cooldown:     gate.DefaultCooldown,
		HistorySize:  gate.DefaultCapacity,
		TickInterval: 33 * time.Millisecond,
	}
}

// ScanService orchestrates frame decoding, label detection and delivery to sinks
type ScanService struct {
	decoder ports.SymbolDecoder
	parser  *extraction.Parser
	sinks   []ports.DetectionSink
	cfg     SessionConfig
	log     zerolog.Logger

	// now is the clock used to timestamp frames
	now func() time.Time
}

// NewScanService creates a new scan service with dependency injection
func NewScanService(
	decoder ports.SymbolDecoder,
	parser *extraction.Parser,
	sinks []ports.DetectionSink,
	cfg SessionConfig,
	log zerolog.Logger,
) *ScanService {
	if parser == nil {
		parser = extraction.NewParser(extraction.WithLogger(log))
	}
	return &ScanService{
		decoder: decoder,
		parser:  parser,
		sinks:   sinks,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// RunSession runs one live scan session until source is exhausted or ctx is
// cancelled. Cancellation is a normal way to stop and is not reported as an
// error.
//
// Each tick does frame → decode → gate → sinks on this goroutine only; the
// session's gate is created here and closed on return, so nothing can feed it
// after the session ends.
// Error handling strategy:
//   - A frame that cannot be decoded is logged and skipped
//   - A sink failure is logged; other sinks still receive the event
//   - Only a failing frame source ends the session with an error
func (s *ScanService) RunSession(ctx context.Context, source ports.FrameSource) (domain.SessionSummary, error) {
	g := gate.New(
		gate.WithCooldown(s.cfg.Cooldown),
		gate.WithCapacity(s.cfg.HistorySize),
		gate.WithParser(s.parser),
		gate.WithLogger(s.log),
	)
	defer g.Close()

	log := s.log.With().Str("session_id", g.SessionID().String()).Logger()
	summary := domain.SessionSummary{SessionID: g.SessionID(), StartedAt: s.now()}
	log.Info().Msg("scan session started")

	var tick <-chan time.Time
	if s.cfg.TickInterval > 0 {
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	err := s.loop(ctx, source, g, tick, &summary, log)

	summary.EndedAt = s.now()
	log.Info().
		Int("frames", summary.Frames).
		Int("symbols", summary.Symbols).
		Int("events", summary.Events).
		Msg("scan session ended")

	return summary, err
}

func (s *ScanService) loop(
	ctx context.Context,
	source ports.FrameSource,
	g *gate.Gate,
	tick <-chan time.Time,
	summary *domain.SessionSummary,
	log zerolog.Logger,
) error {
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		frame, err := source.NextFrame(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}
		summary.Frames++

		symbols, err := s.decoder.Decode(ctx, frame)
		if err != nil {
			log.Warn().Err(err).Int("frame", summary.Frames).Msg("failed to decode frame")
			continue
		}
		summary.Symbols += len(symbols)

		payloads := make([]string, 0, len(symbols))
		for _, sym := range symbols {
			payloads = append(payloads, extraction.DecodePayload(sym.Payload))
		}

		for _, event := range g.Submit(payloads, s.now()) {
			summary.Events++
			s.deliver(ctx, &event, log)
		}
	}
}

// deliver hands one event to every sink
func (s *ScanService) deliver(ctx context.Context, event *domain.DetectionEvent, log zerolog.Logger) {
	log.Info().
		Str("order_id", event.Fields.OrderID).
		Str("package_id", event.Fields.PackageID).
		Str("customer_name", event.Fields.CustomerName).
		Msg("label detected")

	for _, sink := range s.sinks {
		if err := sink.SaveDetection(ctx, event); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID.String()).Msg("failed to store detection")
		}
	}
}

// ScanImage decodes a still image and parses every symbol in it. There is no
// gate here: each symbol is reported, repeated or not.
func (s *ScanService) ScanImage(ctx context.Context, img image.Image) ([]domain.ScanResult, error) {
	symbols, err := s.decoder.Decode(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	results := make([]domain.ScanResult, 0, len(symbols))
	for _, sym := range symbols {
		results = append(results, domain.ScanResult{
			Fields:  s.parser.ParseBytes(sym.Payload),
			Polygon: sym.Polygon,
		})
	}
	return results, nil
}

// ParsePayload runs the extraction cascade on a single payload
func (s *ScanService) ParsePayload(payload string) domain.ExtractedFields {
	return s.parser.Parse(payload)
}
