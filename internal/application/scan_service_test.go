package application

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelscan/label-scanner/internal/domain"
	"github.com/labelscan/label-scanner/internal/ports"
)

const label = "TYPE^NL-2581949^12345^04002338535^1^SKU1"

var t0 = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

// fakeFrame is a tiny image that carries the payloads the fake decoder "finds"
type fakeFrame struct {
	*image.Gray
	at       time.Duration
	payloads []string
	broken   bool
}

func frame(atMs int, payloads ...string) fakeFrame {
	return fakeFrame{
		Gray:     image.NewGray(image.Rect(0, 0, 1, 1)),
		at:       time.Duration(atMs) * time.Millisecond,
		payloads: payloads,
	}
}

type fakeDecoder struct{}

func (fakeDecoder) Decode(_ context.Context, img image.Image) ([]domain.DecodedSymbol, error) {
	f := img.(fakeFrame)
	if f.broken {
		return nil, domain.ErrDecodeUnavailable
	}
	symbols := make([]domain.DecodedSymbol, 0, len(f.payloads))
	for _, p := range f.payloads {
		symbols = append(symbols, domain.DecodedSymbol{
			Payload: []byte(p),
			Polygon: []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}},
		})
	}
	return symbols, nil
}

// clock is advanced by the frame source to each frame's capture time
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type sliceSource struct {
	frames []fakeFrame
	clock  *clock
	err    error
	onNext func(i int)
	next   int
}

func (s *sliceSource) NextFrame(ctx context.Context) (image.Image, error) {
	if s.onNext != nil {
		s.onNext(s.next)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.frames) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	s.clock.set(t0.Add(f.at))
	return f, nil
}

type memorySink struct {
	events []domain.DetectionEvent
	err    error
}

func (m *memorySink) SaveDetection(_ context.Context, event *domain.DetectionEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *event)
	return nil
}

func newTestService(sinks ...ports.DetectionSink) (*ScanService, *clock) {
	cfg := DefaultSessionConfig()
	cfg.TickInterval = 0
	svc := NewScanService(fakeDecoder{}, nil, sinks, cfg, zerolog.Nop())
	c := &clock{now: t0}
	svc.now = c.Now
	return svc, c
}

func rawPayloads(events []domain.DetectionEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Fields.RawPayload)
	}
	return out
}

func TestScanService_RunSession_SameLabelAcrossFrames(t *testing.T) {
	sink := &memorySink{}
	svc, c := newTestService(sink)
	source := &sliceSource{clock: c, frames: []fakeFrame{
		frame(0, label), frame(400, label), frame(800, label), frame(1200, label), frame(1600, label),
	}}

	summary, err := svc.RunSession(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, 5, summary.Frames)
	assert.Equal(t, 5, summary.Symbols)
	assert.Equal(t, 1, summary.Events)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "NL-2581949", sink.events[0].Fields.OrderID)
	assert.Equal(t, summary.SessionID, sink.events[0].SessionID)
	assert.Equal(t, t0, sink.events[0].DetectedAt)
}

func TestScanService_RunSession_CooldownAndRedetection(t *testing.T) {
	sink := &memorySink{}
	svc, c := newTestService(sink)
	source := &sliceSource{clock: c, frames: []fakeFrame{
		frame(0, label),
		frame(1000, "other label"),
		frame(2500, label),
		frame(2600, "third", label),
		frame(5000, "third", "fourth"),
	}}

	summary, err := svc.RunSession(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, 4, summary.Events)
	assert.Equal(t, []string{label, label, "third", "fourth"}, rawPayloads(sink.events))
}

func TestScanService_RunSession_SkipsUndecodableFrames(t *testing.T) {
	sink := &memorySink{}
	svc, c := newTestService(sink)
	broken := frame(0)
	broken.broken = true
	source := &sliceSource{clock: c, frames: []fakeFrame{broken, frame(100, label)}}

	summary, err := svc.RunSession(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Frames)
	assert.Equal(t, []string{label}, rawPayloads(sink.events))
}

func TestScanService_RunSession_SinkFailureDoesNotStopDelivery(t *testing.T) {
	failing := &memorySink{err: errors.New("database down")}
	working := &memorySink{}
	svc, c := newTestService(failing, working)
	source := &sliceSource{clock: c, frames: []fakeFrame{frame(0, label), frame(3000, "next")}}

	summary, err := svc.RunSession(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Events)
	assert.Len(t, working.events, 2)
}

func TestScanService_RunSession_SourceFailure(t *testing.T) {
	svc, c := newTestService()
	source := &sliceSource{clock: c, frames: []fakeFrame{frame(0, label)}, err: errors.New("camera unplugged")}

	summary, err := svc.RunSession(context.Background(), source)

	assert.ErrorContains(t, err, "camera unplugged")
	assert.Equal(t, 1, summary.Frames)
	assert.Equal(t, 1, summary.Events)
}

func TestScanService_RunSession_CancelStopsSession(t *testing.T) {
	sink := &memorySink{}
	svc, c := newTestService(sink)
	ctx, cancel := context.WithCancel(context.Background())
	source := &sliceSource{
		clock:  c,
		frames: []fakeFrame{frame(0, "a"), frame(3000, "b"), frame(6000, "c")},
		onNext: func(i int) {
			if i == 2 {
				cancel()
			}
		},
	}

	summary, err := svc.RunSession(ctx, source)

	require.NoError(t, err, "cancellation is a normal stop")
	assert.Equal(t, 2, summary.Frames)
	assert.Equal(t, []string{"a", "b"}, rawPayloads(sink.events))
}

func TestScanService_RunSession_WithTicker(t *testing.T) {
	sink := &memorySink{}
	svc, c := newTestService(sink)
	svc.cfg.TickInterval = time.Millisecond
	source := &sliceSource{clock: c, frames: []fakeFrame{frame(0, label), frame(10, label)}}

	summary, err := svc.RunSession(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Frames)
	assert.Len(t, sink.events, 1)
}

func TestScanService_RunSession_SessionsAreIndependent(t *testing.T) {
	sink := &memorySink{}
	svc, c := newTestService(sink)

	first, err := svc.RunSession(context.Background(), &sliceSource{clock: c, frames: []fakeFrame{frame(0, label)}})
	require.NoError(t, err)
	second, err := svc.RunSession(context.Background(), &sliceSource{clock: c, frames: []fakeFrame{frame(100, label)}})
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Len(t, sink.events, 2, "a new session starts with a fresh gate")
}

func TestScanService_ScanImage_ReportsEverySymbol(t *testing.T) {
	svc, _ := newTestService()

	results, err := svc.ScanImage(context.Background(), frame(0, label, label, `{"kunde":"Acme"}`))

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "04002338535", results[0].Fields.PackageID)
	assert.Equal(t, results[0].Fields, results[1].Fields)
	assert.Equal(t, "Acme", results[2].Fields.CustomerName)
	assert.Len(t, results[0].Polygon, 3)
}

func TestScanService_ScanImage_DecodeUnavailable(t *testing.T) {
	svc, _ := newTestService()
	broken := frame(0)
	broken.broken = true

	_, err := svc.ScanImage(context.Background(), broken)

	assert.ErrorIs(t, err, domain.ErrDecodeUnavailable)
}

func TestScanService_ParsePayload(t *testing.T) {
	svc, _ := newTestService()

	fields := svc.ParsePayload("https://example.com/track?order=NL-2581949&package=04002338535&customer=Acme+Inc")

	assert.Equal(t, "Acme Inc", fields.CustomerName)
}
