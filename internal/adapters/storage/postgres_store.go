package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/labelscan/label-scanner/internal/domain"
)

// PostgresStore implements ports.DetectionStore for PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL storage instance
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// A scan station writes one row every couple of seconds at most
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InitSchema creates the detections table if it doesn't exist
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	schema := `
	-- One row per emitted detection event. raw_payload is stored verbatim so
	-- rows can be re-parsed when extraction rules change.
	CREATE TABLE IF NOT EXISTS detections (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		order_id TEXT NOT NULL DEFAULT '',
		package_id TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		raw_payload TEXT NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL
	);

	-- Backs ListDetections: a session's events in emission order
	CREATE INDEX IF NOT EXISTS idx_detections_session ON detections(session_id, detected_at);
	-- Lookups by carrier package number at the packing desk
	CREATE INDEX IF NOT EXISTS idx_detections_package ON detections(package_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveDetection inserts a detection event. Saving the same event twice is a no-op.
func (s *PostgresStore) SaveDetection(ctx context.Context, event *domain.DetectionEvent) error {
	query := `
		INSERT INTO detections (id, session_id, order_id, package_id, customer_name, raw_payload, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Fields.OrderID, event.Fields.PackageID,
		event.Fields.CustomerName, event.Fields.RawPayload, event.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection %s: %w", event.ID, err)
	}
	return nil
}

// ListDetections retrieves a session's detections, oldest first
func (s *PostgresStore) ListDetections(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.DetectionEvent, error) {
	query := `
		SELECT id, session_id, order_id, package_id, customer_name, raw_payload, detected_at
		FROM detections
		WHERE session_id = $1
		ORDER BY detected_at ASC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.DetectionEvent, 0)
	for rows.Next() {
		var event domain.DetectionEvent

		err := rows.Scan(
			&event.ID, &event.SessionID, &event.Fields.OrderID, &event.Fields.PackageID,
			&event.Fields.CustomerName, &event.Fields.RawPayload, &event.DetectedAt,
		)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	return events, rows.Err()
}
