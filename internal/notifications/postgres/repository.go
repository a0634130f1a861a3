// Package postgres provides PostgreSQL implementation of notifications repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/notifications"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetNotificationConfig returns the delivery targets for a user.
func (r *Repository) GetNotificationConfig(ctx context.Context, userID string) (*domain.NotificationConfig, error) {
	query := `
		SELECT c.user_id, COALESCE(c.push_token, ''), COALESCE(c.chat_id, ''), COALESCE(c.webhook_url, '')
		FROM user_notification_configs c
		JOIN users u ON u.id = c.user_id
		WHERE c.user_id = $1 AND u.is_active
	`
	var cfg domain.NotificationConfig
	err := r.db.QueryRow(ctx, query, userID).Scan(&cfg.UserID, &cfg.PushToken, &cfg.ChatID, &cfg.WebhookURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrConfigNotFound
		}
		return nil, fmt.Errorf("get notification config: %w", err)
	}
	return &cfg, nil
}

// UpsertNotificationConfig creates or replaces a user's delivery targets.
func (r *Repository) UpsertNotificationConfig(ctx context.Context, cfg *domain.NotificationConfig) error {
	query := `
		INSERT INTO user_notification_configs (user_id, push_token, chat_id, webhook_url)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (user_id) DO UPDATE
		SET push_token = EXCLUDED.push_token,
		    chat_id = EXCLUDED.chat_id,
		    webhook_url = EXCLUDED.webhook_url,
		    updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, cfg.UserID, cfg.PushToken, cfg.ChatID, cfg.WebhookURL); err != nil {
		return fmt.Errorf("upsert notification config: %w", err)
	}
	return nil
}

// RecordDeliveries appends delivery attempts to the log in one batch.
func (r *Repository) RecordDeliveries(ctx context.Context, attempts []notifications.DeliveryAttempt) error {
	query := `
		INSERT INTO notification_deliveries
			(id, incident_id, user_id, channel, outcome, error, retryable, duration_ms, attempted_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
	`
	batch := &pgx.Batch{}
	for _, a := range attempts {
		batch.Queue(query,
			a.ID,
			a.IncidentID,
			a.UserID,
			a.Channel,
			a.Outcome,
			a.Error,
			a.Retryable,
			a.Duration.Milliseconds(),
			a.AttemptedAt,
		)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("record deliveries: %w", err)
	}
	return nil
}

// ListDeliveries returns the delivery log of an incident, oldest first.
func (r *Repository) ListDeliveries(ctx context.Context, incidentID string) ([]notifications.DeliveryAttempt, error) {
	query := `
		SELECT id, incident_id, user_id, channel, outcome, COALESCE(error, ''), retryable, duration_ms, attempted_at
		FROM notification_deliveries
		WHERE incident_id = $1
		ORDER BY attempted_at, id
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	attempts := make([]notifications.DeliveryAttempt, 0)
	for rows.Next() {
		var a notifications.DeliveryAttempt
		var durationMs int64
		if err := rows.Scan(
			&a.ID,
			&a.IncidentID,
			&a.UserID,
			&a.Channel,
			&a.Outcome,
			&a.Error,
			&a.Retryable,
			&durationMs,
			&a.AttemptedAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		a.Duration = time.Duration(durationMs) * time.Millisecond
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return attempts, nil
}
