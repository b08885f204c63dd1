package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amadeodlp/canalradionov-service/internal/models"
)

// Repository handles user persistence. It doubles as the user directory the
// broadcast registry resolves hosts and co-hosts through.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id::text, email, password_hash, name, COALESCE(avatar_url,''), COALESCE(bio,''), role, created_at, updated_at`

// GetUserByID returns a user by ID, or (nil, nil) when the id does not
// resolve.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id::text = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByEmail returns a user by email, or (nil, nil) when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, email).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, name string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (id, email, password_hash, name, role)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id::text, created_at, updated_at`
	u := &models.User{Email: email, Password: passwordHash, Name: name, Role: role}
	err := r.pool.QueryRow(ctx, q, email, passwordHash, name, string(role)).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateProfile updates the mutable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, id, name, avatarURL, bio string) (*models.User, error) {
	const q = `UPDATE users
		SET name = $1, avatar_url = $2, bio = $3, updated_at = NOW()
		WHERE id::text = $4
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, name, avatarURL, bio, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// List returns all users for admin views.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.UserPublic
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, u.ToPublic())
	}
	return list, rows.Err()
}

func scanUser(scan func(dest ...any) error) (*models.User, error) {
	var u models.User
	var role string
	err := scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.AvatarURL, &u.Bio, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}
