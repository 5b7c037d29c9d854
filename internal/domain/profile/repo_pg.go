package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthhub/healthhub/internal/platform/db"
)

const userColumns = `id, email, name, role, password_hash, created_at`

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository stores accounts in the users and profiles tables.
func NewPostgresRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) conn(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, r.pool)
}

func (r *pgRepository) CreateUser(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, lower($2), $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.Role, u.PasswordHash, u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *pgRepository) GetUser(ctx context.Context, id string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *pgRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email))
}

func (r *pgRepository) UpdateUser(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET name = $2, role = $3, password_hash = $4 WHERE id = $1`,
		u.ID, u.Name, u.Role, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *pgRepository) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, email LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) UpdateRole(ctx context.Context, id, role string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *pgRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count roles: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		out[role] = n
	}
	return out, rows.Err()
}

func (r *pgRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT user_id, COALESCE(to_char(date_of_birth, 'YYYY-MM-DD'), ''), sex, height_cm, weight_kg,
		       conditions, allergies, goals, updated_at
		FROM profiles WHERE user_id = $1`, userID).Scan(
		&p.UserID, &p.DateOfBirth, &p.Sex, &p.HeightCm, &p.WeightKg,
		&p.Conditions, &p.Allergies, &p.Goals, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (r *pgRepository) UpsertProfile(ctx context.Context, p *Profile) error {
	conditions, allergies := p.Conditions, p.Allergies
	if conditions == nil {
		conditions = []string{}
	}
	if allergies == nil {
		allergies = []string{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO profiles (user_id, date_of_birth, sex, height_cm, weight_kg, conditions, allergies, goals, updated_at)
		VALUES ($1, NULLIF($2, '')::date, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			date_of_birth = EXCLUDED.date_of_birth, sex = EXCLUDED.sex,
			height_cm = EXCLUDED.height_cm, weight_kg = EXCLUDED.weight_kg,
			conditions = EXCLUDED.conditions, allergies = EXCLUDED.allergies,
			goals = EXCLUDED.goals, updated_at = EXCLUDED.updated_at`,
		p.UserID, p.DateOfBirth, p.Sex, p.HeightCm, p.WeightKg, conditions, allergies, p.Goals, p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
