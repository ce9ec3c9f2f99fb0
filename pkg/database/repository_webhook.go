package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nehagowda06/consent-ledger/pkg/webhook"
)

// WebhookRepository persists queued webhook deliveries and implements
// webhook.DeliveryStore.
type WebhookRepository struct {
	c *Client
}

func NewWebhookRepository(c *Client) *WebhookRepository { return &WebhookRepository{c: c} }

var _ webhook.DeliveryStore = (*WebhookRepository)(nil)

// Enqueue inserts a new pending delivery.
func (r *WebhookRepository) Enqueue(ctx context.Context, tenantID uuid.UUID, targetURL string, payload map[string]any, now time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("database: marshal webhook payload: %w", err)
	}
	_, err = r.c.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, tenant_id, target_url, payload, status, attempt_count, next_attempt_at, created_at)
		 VALUES ($1, $2, $3, $4, 'pending', 0, $5, $5)`,
		uuid.New(), tenantID, targetURL, body, now)
	if err != nil {
		return fmt.Errorf("database: enqueue webhook delivery: %w", err)
	}
	return nil
}

// ClaimDue returns up to limit pending deliveries whose next_attempt_at
// has passed, oldest first.
func (r *WebhookRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]webhook.Delivery, error) {
	rows, err := r.c.db.QueryContext(ctx,
		`SELECT id, tenant_id, target_url, payload, status, attempt_count, next_attempt_at, created_at
		 FROM webhook_deliveries
		 WHERE status = 'pending' AND next_attempt_at <= $1
		 ORDER BY created_at ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("database: claim due webhook deliveries: %w", err)
	}
	defer rows.Close()

	var out []webhook.Delivery
	for rows.Next() {
		var (
			d       webhook.Delivery
			status  string
			rawJSON []byte
		)
		if err := rows.Scan(&d.ID, &d.TenantID, &d.TargetURL, &rawJSON, &status, &d.AttemptCount, &d.NextAttemptAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		var payload map[string]any
		if err := json.Unmarshal(rawJSON, &payload); err != nil {
			return nil, fmt.Errorf("database: unmarshal webhook payload: %w", err)
		}
		d.Payload = payload
		d.Status = webhook.Status(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkSent marks a delivery sent.
func (r *WebhookRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.c.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status = 'sent' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: mark webhook delivery sent: %w", err)
	}
	return nil
}

// MarkRetry bumps the attempt count and reschedules next_attempt_at,
// keeping status pending.
func (r *WebhookRepository) MarkRetry(ctx context.Context, id uuid.UUID, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	_, err := r.c.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET attempt_count = $2, next_attempt_at = $3 WHERE id = $1`,
		id, attemptCount, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("database: mark webhook delivery retry: %w", err)
	}
	return nil
}

// MarkFailed marks a delivery permanently failed.
func (r *WebhookRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := r.c.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status = 'failed' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("database: mark webhook delivery failed: %w", err)
	}
	return nil
}
