package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/store"
)

// UserRepository 用户仓库，实现 store.UserStore
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetUser 根据 ID 查找用户
func (r *UserRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, name, is_gm, COALESCE(character_id, ''), can_use_doors,
		       COALESCE(password_hash, '')
		FROM users WHERE id = $1
	`

	var user model.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.IsGM,
		&user.CharacterID,
		&user.CanUseDoors,
		&user.PasswordHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}
