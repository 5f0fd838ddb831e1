package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickqueue/helpdesk/internal/domain"
)

// TicketFilter captures listing parameters. Filters are conjunctive; pages
// are 1-indexed.
type TicketFilter struct {
	CreatorID     *int64
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	TitleContains string
	Page          int
	PageSize      int
}

// TicketPatch carries a partial update. Nil fields are left untouched.
// ClearAssignee removes the assignee; it wins over AssigneeID.
type TicketPatch struct {
	Title         *string
	Description   *string
	Priority      *domain.TicketPriority
	Status        *domain.TicketStatus
	AssigneeID    *int64
	ClearAssignee bool
	Tags          *[]string
	IsRepeat      *bool
}

// Empty reports whether the patch changes nothing by construction.
func (p TicketPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && p.AssigneeID == nil && !p.ClearAssignee &&
		p.Tags == nil && p.IsRepeat == nil
}

// TicketRepository encapsulates ticket persistence. Ids are assigned from a
// monotonic counter and never reused, even after deletion.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListRecent returns at most limit tickets, newest first by creation
	// time with higher ids winning ties.
	ListRecent(ctx context.Context, limit int) ([]domain.Ticket, error)
	// Update applies the patch and refreshes UpdatedAt iff at least one
	// field actually changed value. Returns the resulting ticket and
	// whether anything changed.
	Update(ctx context.Context, id int64, patch TicketPatch) (*domain.Ticket, bool, error)
	// Delete removes the ticket and cascades comment deletion. Reports
	// whether a ticket existed.
	Delete(ctx context.Context, id int64) (bool, error)

	// Aggregate reads. A zero year means "all time"; a zero month means
	// "whole year".
	CountByStatus(ctx context.Context, year int, month time.Month) (map[domain.TicketStatus]int64, error)
	CountByPriority(ctx context.Context, year int, month time.Month) (map[domain.TicketPriority]int64, error)
	CountByMonth(ctx context.Context, year int) (map[time.Month]int64, error)
	CountRepeat(ctx context.Context) (int64, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository returns a Postgres-backed implementation.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, priority, status, creator_id, assignee_id, tags, is_repeat, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, priority, status, creator_id, assignee_id, tags, is_repeat)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.CreatorID,
		ticket.AssigneeID,
		ticket.Tags,
		ticket.IsRepeat,
	).Scan(&ticket.ID, &ticket.CreatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatorID,
		&ticket.AssigneeID,
		&ticket.Tags,
		&ticket.IsRepeat,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		clauses = append(clauses, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if term := strings.TrimSpace(filter.TitleContains); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY id LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListRecent(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets ORDER BY created_at DESC, id DESC LIMIT %d`,
		ticketColumns, limit)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Update(ctx context.Context, id int64, patch TicketPatch) (*domain.Ticket, bool, error) {
	// Row-lock for the read-modify-write so concurrent patches to
	// different fields cannot overwrite each other.
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	selectQuery := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 FOR UPDATE`, ticketColumns)
	var current domain.Ticket
	if err := tx.QueryRow(ctx, selectQuery, id).Scan(
		&current.ID,
		&current.Title,
		&current.Description,
		&current.Priority,
		&current.Status,
		&current.CreatorID,
		&current.AssigneeID,
		&current.Tags,
		&current.IsRepeat,
		&current.CreatedAt,
		&current.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	next := current.Clone()
	changed := applyTicketPatch(next, patch)
	if !changed {
		return &current, false, nil
	}

	const query = `
        UPDATE tickets SET title=$1, description=$2, priority=$3, status=$4,
            assignee_id=$5, tags=$6, is_repeat=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`
	if err := tx.QueryRow(ctx, query,
		next.Title,
		next.Description,
		next.Priority,
		next.Status,
		next.AssigneeID,
		next.Tags,
		next.IsRepeat,
		id,
	).Scan(&next.UpdatedAt); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return next, true, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) (bool, error) {
	// comments go with the ticket via ON DELETE CASCADE
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) CountByStatus(ctx context.Context, year int, month time.Month) (map[domain.TicketStatus]int64, error) {
	query, args := groupCountQuery("status", year, month)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int64)
	for rows.Next() {
		var key domain.TicketStatus
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) CountByPriority(ctx context.Context, year int, month time.Month) (map[domain.TicketPriority]int64, error) {
	query, args := groupCountQuery("priority", year, month)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketPriority]int64)
	for rows.Next() {
		var key domain.TicketPriority
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) CountByMonth(ctx context.Context, year int) (map[time.Month]int64, error) {
	const query = `
        SELECT EXTRACT(MONTH FROM created_at)::int, COUNT(*)
        FROM tickets WHERE EXTRACT(YEAR FROM created_at)::int = $1
        GROUP BY 1`
	rows, err := r.pool.Query(ctx, query, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[time.Month]int64)
	for rows.Next() {
		var month int
		var count int64
		if err := rows.Scan(&month, &count); err != nil {
			return nil, err
		}
		counts[time.Month(month)] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) CountRepeat(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE is_repeat`).Scan(&count)
	return count, err
}

func groupCountQuery(column string, year int, month time.Month) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if year > 0 {
		args = append(args, year)
		clauses = append(clauses, fmt.Sprintf("EXTRACT(YEAR FROM created_at)::int = $%d", len(args)))
	}
	if month > 0 {
		args = append(args, int(month))
		clauses = append(clauses, fmt.Sprintf("EXTRACT(MONTH FROM created_at)::int = $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM tickets WHERE %s GROUP BY %s`,
		column, strings.Join(clauses, " AND "), column)
	return query, args
}

// applyTicketPatch mutates next with the patch fields and reports whether
// any value actually changed.
func applyTicketPatch(next *domain.Ticket, patch TicketPatch) bool {
	changed := false
	if patch.Title != nil && *patch.Title != next.Title {
		next.Title = *patch.Title
		changed = true
	}
	if patch.Description != nil && *patch.Description != next.Description {
		next.Description = *patch.Description
		changed = true
	}
	if patch.Priority != nil && *patch.Priority != next.Priority {
		next.Priority = *patch.Priority
		changed = true
	}
	if patch.Status != nil && *patch.Status != next.Status {
		next.Status = *patch.Status
		changed = true
	}
	if patch.ClearAssignee {
		if next.AssigneeID != nil {
			next.AssigneeID = nil
			changed = true
		}
	} else if patch.AssigneeID != nil {
		if next.AssigneeID == nil || *next.AssigneeID != *patch.AssigneeID {
			id := *patch.AssigneeID
			next.AssigneeID = &id
			changed = true
		}
	}
	if patch.Tags != nil && !equalTags(next.Tags, *patch.Tags) {
		next.Tags = append([]string(nil), (*patch.Tags)...)
		changed = true
	}
	if patch.IsRepeat != nil && *patch.IsRepeat != next.IsRepeat {
		next.IsRepeat = *patch.IsRepeat
		changed = true
	}
	return changed
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Priority,
			&ticket.Status,
			&ticket.CreatorID,
			&ticket.AssigneeID,
			&ticket.Tags,
			&ticket.IsRepeat,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
