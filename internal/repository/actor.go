package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/store"
)

// ActorRepository 陷阱角色仓库，实现 store.ActorStore
type ActorRepository struct {
	db *pgxpool.Pool
}

// NewActorRepository 创建陷阱角色仓库
func NewActorRepository(db *pgxpool.Pool) *ActorRepository {
	return &ActorRepository{db: db}
}

// CreateActor 创建陷阱角色
func (r *ActorRepository) CreateActor(ctx context.Context, actor model.TrapActor) error {
	query := `
		INSERT INTO actors (id, name, source_id, folder, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`
	_, err := r.db.Exec(ctx, query, actor.ID, actor.Name, actor.SourceID, actor.Folder, actor.CreatedAt)
	return err
}

// DeleteActor 删除陷阱角色
func (r *ActorRepository) DeleteActor(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM actors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrActorNotFound
	}
	return nil
}

// ListActors 文件夹中的陷阱角色，按创建时间升序
func (r *ActorRepository) ListActors(ctx context.Context, folder string) ([]model.TrapActor, error) {
	query := `
		SELECT id, name, source_id, COALESCE(folder, ''), created_at
		FROM actors WHERE folder = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, folder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []model.TrapActor
	for rows.Next() {
		var actor model.TrapActor
		if err := rows.Scan(&actor.ID, &actor.Name, &actor.SourceID, &actor.Folder, &actor.CreatedAt); err != nil {
			return nil, err
		}
		actors = append(actors, actor)
	}
	return actors, rows.Err()
}
