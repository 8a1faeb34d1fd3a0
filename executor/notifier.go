package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Alert is the delivery payload emitted for alert-class actions. The wire
// mechanics (email, SMS, paging) live behind the Notifier boundary.
type Alert struct {
	IncidentID   string    `json:"incident_id"`
	Action       string    `json:"action"`
	Category     string    `json:"type"`
	Severity     string    `json:"severity"`
	Confidence   int       `json:"confidence"`
	Reasoning    string    `json:"reasoning"`
	EvidencePath string    `json:"evidence_path,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier delivers alerts to external channels. Delivery is fire-and-forget
// from the pipeline's point of view: a failed delivery marks the step failed
// but never blocks the rest of the plan.
type Notifier interface {
	Deliver(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log. Default when no delivery transport is
// configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// Deliver logs the alert.
func (n *LogNotifier) Deliver(_ context.Context, alert Alert) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("SECURITY ALERT",
		"incident_id", alert.IncidentID,
		"action", alert.Action,
		"category", alert.Category,
		"severity", alert.Severity,
		"confidence", alert.Confidence,
		"evidence", alert.EvidencePath)
	return nil
}

// NATSNotifier publishes alerts to a NATS subject per severity, e.g.
// aegis.alerts.high. Downstream consumers own the actual email/SMS fan-out.
type NATSNotifier struct {
	conn *nats.Conn
}

// NewNATSNotifier connects to a NATS server.
func NewNATSNotifier(url string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("aegis-executor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSNotifier{conn: conn}, nil
}

// Deliver publishes the alert as JSON.
func (n *NATSNotifier) Deliver(_ context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	subject := fmt.Sprintf("aegis.alerts.%s", alert.Severity)
	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}

// Close drains the NATS connection.
func (n *NATSNotifier) Close() {
	n.conn.Drain()
}

var _ Notifier = (*LogNotifier)(nil)
var _ Notifier = (*NATSNotifier)(nil)
