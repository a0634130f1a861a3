// Package postgres provides PostgreSQL implementation of the schedule repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/oncall"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements oncall.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetSchedule retrieves a schedule and its ordered members.
func (r *Repository) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, oncall.ErrScheduleNotFound
	}
	query := `
		SELECT s.id, s.name, s.shift_length, s.start_at, COALESCE(s.handoff_time, ''), s.time_zone,
		       s.is_active, s.created_at, s.updated_at,
		       COALESCE(
		           ARRAY(SELECT m.user_id::text FROM schedule_members m WHERE m.schedule_id = s.id ORDER BY m.position),
		           '{}'
		       )
		FROM schedules s
		WHERE s.id = $1
	`
	var s domain.Schedule
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.Name,
		&s.ShiftLength,
		&s.StartAt,
		&s.HandoffTime,
		&s.TimeZone,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.Members,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oncall.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return &s, nil
}

// GetActiveOverrides returns overrides intersecting [from, to].
func (r *Repository) GetActiveOverrides(ctx context.Context, scheduleID string, from, to time.Time) ([]domain.ScheduleOverride, error) {
	query := `
		SELECT id, schedule_id, user_id, start_time, end_time, created_at
		FROM schedule_overrides
		WHERE schedule_id = $1 AND start_time <= $3 AND end_time > $2
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, scheduleID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get active overrides: %w", err)
	}
	defer rows.Close()

	overrides := make([]domain.ScheduleOverride, 0)
	for rows.Next() {
		var o domain.ScheduleOverride
		if err := rows.Scan(&o.ID, &o.ScheduleID, &o.UserID, &o.StartTime, &o.EndTime, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return overrides, nil
}

// CreateSchedule inserts a schedule with its members in order.
func (r *Repository) CreateSchedule(ctx context.Context, s *domain.Schedule) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO schedules (name, shift_length, start_at, handoff_time, time_zone, is_active)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		RETURNING id, created_at, updated_at
	`
	if err := tx.QueryRow(ctx, query,
		s.Name, s.ShiftLength, s.StartAt, s.HandoffTime, s.TimeZone, s.IsActive,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}

	for i, userID := range s.Members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO schedule_members (schedule_id, user_id, position) VALUES ($1, $2, $3)`,
			s.ID, userID, i,
		); err != nil {
			return fmt.Errorf("insert schedule member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateOverride inserts a schedule override.
func (r *Repository) CreateOverride(ctx context.Context, o *domain.ScheduleOverride) error {
	query := `
		INSERT INTO schedule_overrides (schedule_id, user_id, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRow(ctx, query, o.ScheduleID, o.UserID, o.StartTime, o.EndTime).Scan(&o.ID, &o.CreatedAt); err != nil {
		return fmt.Errorf("create override: %w", err)
	}
	return nil
}
