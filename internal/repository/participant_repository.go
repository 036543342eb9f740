package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exquiz-backend/internal/model"
)

// ParticipantRepository handles participant data access.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// ListPaginated retrieves participants with pagination and an optional
// case-insensitive search over name and email.
func (r *ParticipantRepository) ListPaginated(ctx context.Context, search string, limit, offset int) ([]model.Participant, int, error) {
	where := ``
	var args []any
	if search != "" {
		where = ` WHERE name ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+search+"%")
	}

	// 1. Get total count
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM participants`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// 2. Get paginated data
	query := `SELECT id, name, email, created_at, updated_at FROM participants` + where +
		` ORDER BY name LIMIT $` + formatInt(len(args)+1) + ` OFFSET $` + formatInt(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		participants = append(participants, p)
	}
	return participants, total, rows.Err()
}

// Create inserts a new participant. Returns ErrDuplicate on a taken email.
func (r *ParticipantRepository) Create(ctx context.Context, p *model.Participant) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO participants (name, email) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.Email,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

// Update changes a participant's name and email.
func (r *ParticipantRepository) Update(ctx context.Context, p *model.Participant) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE participants SET name = $2, email = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Email,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

// Delete removes a participant.
func (r *ParticipantRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM participants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
