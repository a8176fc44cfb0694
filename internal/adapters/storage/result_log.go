package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/labelscan/label-scanner/internal/domain"
)

var errNotAList = errors.New("result file does not contain a list of detections")

// csvHeader is the column order of exported CSV files
var csvHeader = []string{"timestamp", "order_id", "package_id", "customer_name", "raw_payload"}

// ResultLog keeps a session's detections in memory and exports them as JSON or CSV
//
// It implements ports.DetectionSink. Export files land in dir, which is
// created on first export.
type ResultLog struct {
	mu      sync.Mutex
	dir     string
	results []domain.DetectionEvent
	now     func() time.Time
}

// NewResultLog creates an empty log exporting into dir
func NewResultLog(dir string) *ResultLog {
	return &ResultLog{dir: dir, now: time.Now}
}

// SaveDetection appends an event
func (l *ResultLog) SaveDetection(_ context.Context, event *domain.DetectionEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, *event)
	return nil
}

// Results returns a copy of the recorded events in arrival order
func (l *ResultLog) Results() []domain.DetectionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.DetectionEvent, len(l.results))
	copy(out, l.results)
	return out
}

// Clear drops all recorded events
func (l *ResultLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = nil
}

// SaveJSON writes the events as an indented JSON array and returns the file
// path. An empty name picks scan_results_YYYYMMDD_HHMMSS.json.
func (l *ResultLog) SaveJSON(name string) (string, error) {
	data, err := json.MarshalIndent(l.Results(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}

	path, err := l.exportPath(name, "json")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// SaveCSV writes one row per event and returns the file path. An empty name
// picks scan_results_YYYYMMDD_HHMMSS.csv.
func (l *ResultLog) SaveCSV(name string) (path string, err error) {
	results := l.Results()

	path, err = l.exportPath(name, "csv")
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range results {
		row := []string{
			r.DetectedAt.Format(time.RFC3339Nano),
			r.Fields.OrderID,
			r.Fields.PackageID,
			r.Fields.CustomerName,
			r.Fields.RawPayload,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}
	return path, nil
}

// LoadJSON replaces the recorded events with the contents of a file written
// by SaveJSON. The file must hold a JSON array.
func (l *ResultLog) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return errNotAList
	}

	var results []domain.DetectionEvent
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("failed to decode detections in %s: %w", path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = results
	return nil
}

func (l *ResultLog) exportPath(name, ext string) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	if name == "" {
		name = fmt.Sprintf("scan_results_%s.%s", l.now().Format("20060102_150405"), ext)
	}
	return filepath.Join(l.dir, name), nil
}
