package gate

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labelscan/label-scanner/internal/domain"
	"github.com/labelscan/label-scanner/internal/domain/extraction"
)

const (
	// DefaultCooldown is how long the gate stays closed after an emission
	DefaultCooldown = 2000 * time.Millisecond

	// DefaultCapacity is how many recent payloads the gate remembers
	DefaultCapacity = 10
)

// PayloadParser turns a raw payload into fields
type PayloadParser interface {
	Parse(payload string) domain.ExtractedFields
}

// Gate converts a per-frame stream of decoded payloads into one-shot
// detection events
//
// The gate has two states sharing one deadline:
//   - Open: every payload of a batch is emitted (once per batch); unseen
//     payloads are remembered, and the first emission arms the cooldown
//   - Cooling: now is before the deadline and whole batches are dropped
//
// Remembering a payload never blocks it by itself. Once the cooldown has
// passed the same label is reported again.
//
// A Gate belongs to one scan session. All state changes go through one mutex,
// so concurrent callers cannot interleave batches.
type Gate struct {
	mu sync.Mutex

	parser    PayloadParser
	sessionID uuid.UUID
	cooldown  time.Duration
	recent    *history
	deadline  time.Time
	closed    bool
	log       zerolog.Logger
}

// Option configures a Gate
type Option func(*Gate)

// WithCooldown overrides DefaultCooldown
func WithCooldown(d time.Duration) Option {
	return func(g *Gate) { g.cooldown = d }
}

// WithCapacity overrides DefaultCapacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.recent = newHistory(n)
		}
	}
}

// WithParser replaces the standard extraction cascade
func WithParser(p PayloadParser) Option {
	return func(g *Gate) { g.parser = p }
}

// WithLogger sets the gate logger
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gate) { g.log = l }
}

// New creates an open gate for a new scan session with a fresh session id
func New(opts ...Option) *Gate {
	g := &Gate{
		parser:    extraction.NewParser(),
		sessionID: uuid.New(),
		cooldown:  DefaultCooldown,
		recent:    newHistory(DefaultCapacity),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With().Str("session_id", g.sessionID.String()).Logger()
	return g
}

// SessionID returns the id stamped on every event this gate emits
func (g *Gate) SessionID() uuid.UUID {
	return g.sessionID
}

// Submit evaluates one frame's payloads at time now and returns the events to
// deliver. It never fails; an empty batch, a cooling gate or a closed gate
// yield no events.
func (g *Gate) Submit(payloads []string, now time.Time) []domain.DetectionEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || len(payloads) == 0 {
		return nil
	}
	if g.coolingLocked(now) {
		return nil
	}
	g.deadline = time.Time{}

	var events []domain.DetectionEvent
	emitted := make(map[string]struct{}, len(payloads))

	for _, payload := range payloads {
		if _, dup := emitted[payload]; dup {
			continue
		}
		emitted[payload] = struct{}{}

		if evicted, ok := g.recent.add(payload); ok {
			g.log.Debug().Str("evicted", evicted).Msg("history full, dropped oldest payload")
		}

		events = append(events, domain.DetectionEvent{
			ID:         uuid.New(),
			SessionID:  g.sessionID,
			Fields:     g.parser.Parse(payload),
			DetectedAt: now,
		})

		// the rest of this batch is still emitted; only later batches wait
		if g.deadline.IsZero() {
			g.deadline = now.Add(g.cooldown)
		}
	}

	return events
}

// Cooling reports whether a batch submitted at now would be suppressed
func (g *Gate) Cooling(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.coolingLocked(now)
}

// Deadline returns the end of the current cooldown, zero when open
func (g *Gate) Deadline() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deadline
}

// Remembers reports whether payload is in the recent history
func (g *Gate) Remembers(payload string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recent.contains(payload)
}

// Recent returns the remembered payloads, oldest first
func (g *Gate) Recent() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recent.snapshot()
}

// Close ends the session. Pending cooldown is discarded and later Submit
// calls are ignored.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.deadline = time.Time{}
}

func (g *Gate) coolingLocked(now time.Time) bool {
	return !g.deadline.IsZero() && now.Before(g.deadline)
}
