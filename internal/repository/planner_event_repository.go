package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/taskboard/internal/domain"
)

// PlannerFilter narrows calendar listings. UserIDs is mandatory.
type PlannerFilter struct {
	UserIDs []string
	From    *time.Time
	To      *time.Time
}

// PlannerEventRepository persists calendar entries.
type PlannerEventRepository interface {
	Create(ctx context.Context, event *domain.PlannerEvent) error
	Update(ctx context.Context, event *domain.PlannerEvent) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.PlannerEvent, error)
	List(ctx context.Context, filter PlannerFilter) ([]domain.PlannerEvent, error)
}

type plannerEventRepository struct {
	pool *pgxpool.Pool
}

// NewPlannerEventRepository builds repository.
func NewPlannerEventRepository(pool *pgxpool.Pool) PlannerEventRepository {
	return &plannerEventRepository{pool: pool}
}

const plannerColumns = `id, user_id, created_by_id, title, description, starts_at, ends_at, all_day, created_at, updated_at`

func (r *plannerEventRepository) Create(ctx context.Context, event *domain.PlannerEvent) error {
	const query = `
        INSERT INTO planner_events (user_id, created_by_id, title, description, starts_at, ends_at, all_day)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		event.UserID,
		event.CreatedByID,
		event.Title,
		event.Description,
		event.StartsAt,
		event.EndsAt,
		event.AllDay,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
}

func (r *plannerEventRepository) Update(ctx context.Context, event *domain.PlannerEvent) error {
	const query = `
        UPDATE planner_events SET title=$1, description=$2, starts_at=$3, ends_at=$4, all_day=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		event.Title,
		event.Description,
		event.StartsAt,
		event.EndsAt,
		event.AllDay,
		event.ID,
	).Scan(&event.UpdatedAt)
}

func (r *plannerEventRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM planner_events WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *plannerEventRepository) GetByID(ctx context.Context, id string) (*domain.PlannerEvent, error) {
	query := `SELECT ` + plannerColumns + ` FROM planner_events WHERE id=$1`
	return scanPlannerEvent(r.pool.QueryRow(ctx, query, id))
}

// List returns events overlapping [From, To].
func (r *plannerEventRepository) List(ctx context.Context, filter PlannerFilter) ([]domain.PlannerEvent, error) {
	if len(filter.UserIDs) == 0 {
		return []domain.PlannerEvent{}, nil
	}
	clauses := []string{"user_id = ANY($1::uuid[])"}
	args := []any{filter.UserIDs}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("ends_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("starts_at <= $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM planner_events WHERE %s ORDER BY starts_at ASC, id ASC`,
		plannerColumns, strings.Join(clauses, " AND "))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.PlannerEvent{}
	for rows.Next() {
		event, err := scanPlannerEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *event)
	}
	return result, rows.Err()
}

func scanPlannerEvent(row pgx.Row) (*domain.PlannerEvent, error) {
	var event domain.PlannerEvent
	if err := row.Scan(
		&event.ID,
		&event.UserID,
		&event.CreatedByID,
		&event.Title,
		&event.Description,
		&event.StartsAt,
		&event.EndsAt,
		&event.AllDay,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &event, nil
}
