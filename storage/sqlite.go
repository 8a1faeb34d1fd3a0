// Package storage persists incidents and per-step audit records in SQLite.
//
// Information Hiding:
// - SQLite connection management hidden behind the Store type
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Incident lifecycle statuses.
const (
	StatusActive     = "active"
	StatusLogged     = "logged"
	StatusMonitoring = "monitoring"
	StatusEscalated  = "escalated"
	StatusResolved   = "resolved"
	StatusDismissed  = "dismissed"
)

var validStatuses = map[string]struct{}{
	StatusActive:     {},
	StatusLogged:     {},
	StatusMonitoring: {},
	StatusEscalated:  {},
	StatusResolved:   {},
	StatusDismissed:  {},
}

// IsValidStatus reports whether s is a known incident status.
func IsValidStatus(s string) bool {
	_, ok := validStatuses[s]
	return ok
}

// Incident is one persisted detection with its response plan.
type Incident struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Category           string    `json:"type"`
	Severity           string    `json:"severity"`
	Confidence         int       `json:"confidence"`
	Reasoning          string    `json:"reasoning"`
	Subjects           []string  `json:"subjects"`
	RecommendedActions []string  `json:"recommended_actions"`
	EvidencePath       string    `json:"evidence_path"`
	ResponsePlan       string    `json:"response_plan"` // plan serialized as JSON
	Status             string    `json:"status"`
}

// AuditRecord is the durable trace of one executed action step.
type AuditRecord struct {
	ID         int64     `json:"id"`
	IncidentID string    `json:"incident_id"`
	Action     string    `json:"action"`
	Priority   string    `json:"priority"`
	Status     string    `json:"status"`
	Result     string    `json:"result"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Statistics summarizes the incident database.
type Statistics struct {
	TotalIncidents int            `json:"total_incidents"`
	ActiveCount    int            `json:"active_count"`
	BySeverity     map[string]int `json:"by_severity"`
	Last24Hours    int            `json:"last_24_hours"`
	TotalActions   int            `json:"total_actions"`
}

// Store persists incidents and audit records.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type Store struct {
	db *sql.DB
}

// Open opens or creates the incident database at the given path.
// Creates parent directories if they don't exist.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// OpenInMemory creates an in-memory database (useful for testing).
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	store := &Store{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		incident_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		reasoning TEXT NOT NULL,
		subjects TEXT,
		recommended_actions TEXT,
		evidence_path TEXT,
		response_plan TEXT,
		status TEXT DEFAULT 'active',
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		incident_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		priority TEXT DEFAULT 'medium',
		status TEXT DEFAULT 'pending',
		result TEXT,
		executed_at TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (incident_id) REFERENCES incidents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_timestamp ON incidents(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_incidents_severity ON incidents(severity);
	CREATE INDEX IF NOT EXISTS idx_actions_incident ON actions(incident_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveIncident persists an incident, assigning an id when none is set.
func (s *Store) SaveIncident(ctx context.Context, inc *Incident) error {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.Status == "" {
		inc.Status = StatusActive
	}
	if inc.Timestamp.IsZero() {
		inc.Timestamp = time.Now().UTC()
	}

	subjects, err := json.Marshal(inc.Subjects)
	if err != nil {
		return fmt.Errorf("failed to marshal subjects: %w", err)
	}
	recommended, err := json.Marshal(inc.RecommendedActions)
	if err != nil {
		return fmt.Errorf("failed to marshal recommended actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO incidents (
			id, timestamp, incident_type, severity, confidence,
			reasoning, subjects, recommended_actions,
			evidence_path, response_plan, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID,
		inc.Timestamp.Format(time.RFC3339),
		inc.Category,
		inc.Severity,
		inc.Confidence,
		inc.Reasoning,
		string(subjects),
		string(recommended),
		inc.EvidencePath,
		inc.ResponsePlan,
		inc.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to save incident: %w", err)
	}
	return nil
}

// GetIncident loads one incident by id. Returns sql.ErrNoRows when absent.
func (s *Store) GetIncident(ctx context.Context, id string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, incident_type, severity, confidence,
		       reasoning, subjects, recommended_actions,
		       evidence_path, response_plan, status
		FROM incidents WHERE id = ?`, id)
	return scanIncident(row)
}

// RecentIncidents returns the newest incidents, optionally filtered by
// severity. limit <= 0 means 50.
func (s *Store) RecentIncidents(ctx context.Context, limit int, severity string) ([]Incident, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, timestamp, incident_type, severity, confidence,
		       reasoning, subjects, recommended_actions,
		       evidence_path, response_plan, status
		FROM incidents`
	args := []any{}
	if severity != "" {
		query += ` WHERE severity = ?`
		args = append(args, severity)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, *inc)
	}
	return incidents, rows.Err()
}

// UpdateStatus moves an incident to a new lifecycle status.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) error {
	if !IsValidStatus(status) {
		return fmt.Errorf("invalid incident status: %q", status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update incident status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("incident not found: %s", id)
	}
	return nil
}

// SaveAction appends one audit record for an executed step.
func (s *Store) SaveAction(ctx context.Context, rec *AuditRecord) error {
	if rec.ExecutedAt.IsZero() {
		rec.ExecutedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (incident_id, action_type, priority, status, result, executed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.IncidentID,
		rec.Action,
		rec.Priority,
		rec.Status,
		rec.Result,
		rec.ExecutedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// ActionsForIncident returns all audit records for one incident in execution
// order.
func (s *Store) ActionsForIncident(ctx context.Context, incidentID string) ([]AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, action_type, priority, status, result, executed_at
		FROM actions WHERE incident_id = ? ORDER BY id ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var result sql.NullString
		var executedAt string
		if err := rows.Scan(&rec.ID, &rec.IncidentID, &rec.Action, &rec.Priority,
			&rec.Status, &result, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Result = result.String
		rec.ExecutedAt, _ = time.Parse(time.RFC3339, executedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetStatistics summarizes the incident database.
func (s *Store) GetStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{BySeverity: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incidents`).Scan(&stats.TotalIncidents); err != nil {
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incidents WHERE status = ?`, StatusActive).Scan(&stats.ActiveCount); err != nil {
		return nil, fmt.Errorf("failed to count active incidents: %w", err)
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incidents WHERE timestamp > ?`, cutoff).Scan(&stats.Last24Hours); err != nil {
		return nil, fmt.Errorf("failed to count recent incidents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM actions`).Scan(&stats.TotalActions); err != nil {
		return nil, fmt.Errorf("failed to count actions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM incidents GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("failed to query severity breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		stats.BySeverity[severity] = count
	}
	return stats, rows.Err()
}

// Cleanup deletes incidents (and their audit records, via cascade) older than
// the given number of days. Returns the number of incidents removed.
func (s *Store) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)

	// Explicit delete of audit records first; cascades require foreign_keys
	// pragma which is off by default in sqlite3.
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM actions WHERE incident_id IN
		(SELECT id FROM incidents WHERE timestamp < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to clean up audit records: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM incidents WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up incidents: %w", err)
	}
	return res.RowsAffected()
}

// scanTarget is satisfied by *sql.Row and *sql.Rows.
type scanTarget interface {
	Scan(dest ...any) error
}

func scanIncident(row scanTarget) (*Incident, error) {
	var inc Incident
	var timestamp string
	var subjects, recommended, evidencePath, responsePlan sql.NullString

	err := row.Scan(&inc.ID, &timestamp, &inc.Category, &inc.Severity, &inc.Confidence,
		&inc.Reasoning, &subjects, &recommended, &evidencePath, &responsePlan, &inc.Status)
	if err != nil {
		return nil, err
	}

	inc.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
	inc.EvidencePath = evidencePath.String
	inc.ResponsePlan = responsePlan.String
	if subjects.Valid {
		_ = json.Unmarshal([]byte(subjects.String), &inc.Subjects)
	}
	if recommended.Valid {
		_ = json.Unmarshal([]byte(recommended.String), &inc.RecommendedActions)
	}
	return &inc, nil
}
