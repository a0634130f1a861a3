// Package postgres provides PostgreSQL implementation of the escalation store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/bissquit/oncall-garden/internal/escalation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is implemented by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements escalation.Store using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `
	id, title, description, status, urgency, service_id::text, escalation_policy_id::text,
	current_escalation_level, escalation_status, last_escalated_at, assigned_to::text,
	acknowledged_by::text, acknowledged_at, resolved_by::text, resolved_at, created_at, updated_at
`

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(
		&inc.ID,
		&inc.Title,
		&inc.Description,
		&inc.Status,
		&inc.Urgency,
		&inc.ServiceID,
		&inc.EscalationPolicyID,
		&inc.CurrentEscalationLevel,
		&inc.EscalationStatus,
		&inc.LastEscalatedAt,
		&inc.AssignedTo,
		&inc.AcknowledgedBy,
		&inc.AcknowledgedAt,
		&inc.ResolvedBy,
		&inc.ResolvedAt,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// GetOpenIncidents lists triggered incidents that are still escalating.
func (r *Repository) GetOpenIncidents(ctx context.Context, filter escalation.OpenIncidentFilter) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE status = 'triggered'
		  AND escalation_status <> 'completed'
		  AND escalation_policy_id IS NOT NULL
		ORDER BY created_at, id
		LIMIT $1
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get open incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*domain.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}
	return incidents, nil
}

// GetIncident retrieves an incident by ID.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	if !isUUID(id) {
		return nil, escalation.ErrIncidentNotFound
	}
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	inc, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escalation.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

// CreateIncident inserts a new triggered incident.
func (r *Repository) CreateIncident(ctx context.Context, inc *domain.Incident) error {
	query := `
		INSERT INTO incidents (title, description, status, urgency, service_id, escalation_policy_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, current_escalation_level, escalation_status, created_at, updated_at
	`
	if inc.Status == "" {
		inc.Status = domain.IncidentStatusTriggered
	}
	if inc.Urgency == "" {
		inc.Urgency = domain.UrgencyHigh
	}
	err := r.db.QueryRow(ctx, query,
		inc.Title,
		inc.Description,
		inc.Status,
		inc.Urgency,
		inc.ServiceID,
		inc.EscalationPolicyID,
	).Scan(&inc.ID, &inc.CurrentEscalationLevel, &inc.EscalationStatus, &inc.CreatedAt, &inc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// GetEscalationPolicy retrieves a policy with its levels ordered by number.
func (r *Repository) GetEscalationPolicy(ctx context.Context, id string) (*domain.EscalationPolicy, error) {
	if !isUUID(id) {
		return nil, escalation.ErrPolicyNotFound
	}
	query := `
		SELECT id, name, COALESCE(description, ''), created_at, updated_at
		FROM escalation_policies
		WHERE id = $1
	`
	var p domain.EscalationPolicy
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escalation.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("get escalation policy: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT level_number, target_type, target_id::text, delay_minutes, notification_channels
		FROM escalation_levels
		WHERE policy_id = $1
		ORDER BY level_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get escalation levels: %w", err)
	}
	defer rows.Close()

	p.Levels = make([]domain.EscalationLevel, 0)
	for rows.Next() {
		var (
			l        domain.EscalationLevel
			channels []string
		)
		if err := rows.Scan(&l.LevelNumber, &l.TargetType, &l.TargetID, &l.DelayMinutes, &channels); err != nil {
			return nil, fmt.Errorf("scan escalation level: %w", err)
		}
		for _, c := range channels {
			l.Channels = append(l.Channels, domain.ChannelType(c))
		}
		p.Levels = append(p.Levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalation levels: %w", err)
	}
	return &p, nil
}

// CreateEscalationPolicy inserts a policy and its levels in one transaction.
func (r *Repository) CreateEscalationPolicy(ctx context.Context, p *domain.EscalationPolicy) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO escalation_policies (name, description)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, created_at, updated_at
	`, p.Name, p.Description).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert escalation policy: %w", err)
	}

	for _, l := range p.Levels {
		channels := make([]string, 0, len(l.Channels))
		for _, c := range l.Channels {
			channels = append(channels, string(c))
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO escalation_levels (policy_id, level_number, target_type, target_id, delay_minutes, notification_channels)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, l.LevelNumber, l.TargetType, l.TargetID, l.DelayMinutes, channels); err != nil {
			return fmt.Errorf("insert escalation level %d: %w", l.LevelNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if !isUUID(id) {
		return nil, escalation.ErrUserNotFound
	}
	query := `
		SELECT id, name, email, role, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escalation.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user.
func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	if u.Role == "" {
		u.Role = domain.RoleResponder
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (name, email, role, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, u.Name, u.Email, u.Role, u.IsActive).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetGroup retrieves a group with its members.
func (r *Repository) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	if !isUUID(id) {
		return nil, escalation.ErrGroupNotFound
	}
	var g domain.Group
	err := r.db.QueryRow(ctx, `SELECT id, name FROM groups WHERE id = $1`, id).Scan(&g.ID, &g.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escalation.ErrGroupNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT m.user_id::text, m.is_active AND u.is_active
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.group_id = $1
		ORDER BY m.created_at, m.user_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get group members: %w", err)
	}
	defer rows.Close()

	g.Members = make([]domain.GroupMember, 0)
	for rows.Next() {
		var m domain.GroupMember
		if err := rows.Scan(&m.UserID, &m.IsActive); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		g.Members = append(g.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return &g, nil
}

// CreateGroup inserts a group and its members in one transaction.
func (r *Repository) CreateGroup(ctx context.Context, g *domain.Group) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, `INSERT INTO groups (name) VALUES ($1) RETURNING id`, g.Name).Scan(&g.ID); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	for _, m := range g.Members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO group_members (group_id, user_id, is_active) VALUES ($1, $2, $3)`,
			g.ID, m.UserID, m.IsActive,
		); err != nil {
			return fmt.Errorf("insert group member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateIncidentEscalation applies a level change only if the incident still
// matches the expected snapshot. The events are written in the same
// transaction.
func (r *Repository) UpdateIncidentEscalation(ctx context.Context, update escalation.EscalationUpdate, events ...domain.IncidentEvent) error {
	query := `
		UPDATE incidents
		SET current_escalation_level = $2,
		    escalation_status = $3,
		    last_escalated_at = $4,
		    assigned_to = COALESCE($5::uuid, assigned_to),
		    updated_at = NOW()
		WHERE id = $1
		  AND status = $6
		  AND current_escalation_level = $7
		  AND last_escalated_at IS NOT DISTINCT FROM $8::timestamptz
	`
	return r.conditionalWrite(ctx, update.IncidentID, events, func(q querier) (pgconn.CommandTag, error) {
		return q.Exec(ctx, query,
			update.IncidentID,
			update.Level,
			update.EscalationStatus,
			update.LastEscalatedAt,
			update.AssignedTo,
			update.Expected.Status,
			update.Expected.Level,
			update.Expected.LastEscalatedAt,
		)
	})
}

// UpdateIncidentStatus acknowledges or resolves an incident and stops its
// escalation. Only the status is compared, so a concurrent level change
// never blocks a responder.
func (r *Repository) UpdateIncidentStatus(ctx context.Context, update escalation.StatusUpdate, events ...domain.IncidentEvent) error {
	var query string
	switch update.Status {
	case domain.IncidentStatusAcknowledged:
		query = `
			UPDATE incidents
			SET status = $2, escalation_status = 'completed',
			    acknowledged_by = $3, acknowledged_at = $4, updated_at = NOW()
		`
	case domain.IncidentStatusResolved:
		query = `
			UPDATE incidents
			SET status = $2, escalation_status = 'completed',
			    resolved_by = $3, resolved_at = $4, updated_at = NOW()
		`
	default:
		return fmt.Errorf("unsupported status transition to %q", update.Status)
	}
	query += `WHERE id = $1 AND status = $5`

	return r.conditionalWrite(ctx, update.IncidentID, events, func(q querier) (pgconn.CommandTag, error) {
		return q.Exec(ctx, query,
			update.IncidentID,
			update.Status,
			update.By,
			update.At,
			update.From,
		)
	})
}

// conditionalWrite runs update and appends events in one transaction. When
// the update matched no row it reports not found or a conflict.
func (r *Repository) conditionalWrite(ctx context.Context, id string, events []domain.IncidentEvent, update func(q querier) (pgconn.CommandTag, error)) error {
	if !isUUID(id) {
		return escalation.ErrIncidentNotFound
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := update(tx)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check incident: %w", err)
		}
		if !exists {
			return escalation.ErrIncidentNotFound
		}
		return escalation.ErrEscalationConflict
	}

	for _, e := range events {
		if err := insertEvent(ctx, tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AppendIncidentEvent adds an entry to the incident timeline.
func (r *Repository) AppendIncidentEvent(ctx context.Context, event domain.IncidentEvent) error {
	return insertEvent(ctx, r.db, event)
}

func insertEvent(ctx context.Context, q querier, e domain.IncidentEvent) error {
	data, err := json.Marshal(e.EventData)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = q.Exec(ctx, `
		INSERT INTO incident_events (incident_id, event_type, event_data, created_by, created_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
	`, e.IncidentID, e.EventType, string(data), e.CreatedBy, createdAt)
	if err != nil {
		return fmt.Errorf("insert incident event: %w", err)
	}
	return nil
}

// ListIncidentEvents returns the timeline of an incident, oldest first.
func (r *Repository) ListIncidentEvents(ctx context.Context, incidentID string) ([]domain.IncidentEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, incident_id, event_type, event_data, created_by::text, created_at
		FROM incident_events
		WHERE incident_id = $1
		ORDER BY created_at, id
	`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list incident events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.IncidentEvent, 0)
	for rows.Next() {
		var (
			e    domain.IncidentEvent
			data []byte
		)
		if err := rows.Scan(&e.ID, &e.IncidentID, &e.EventType, &data, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incident event: %w", err)
		}
		if err := json.Unmarshal(data, &e.EventData); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident events: %w", err)
	}
	return events, nil
}

// isUUID filters ids that would make postgres reject the query outright.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
