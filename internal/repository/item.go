package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.trapdoors/internal/model"
)

// ItemRepository 物品仓库，实现 store.ItemStore
type ItemRepository struct {
	db *pgxpool.Pool
}

// NewItemRepository 创建物品仓库
func NewItemRepository(db *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{db: db}
}

// KeysFor 查询角色持有的、绑定到该门的钥匙
func (r *ItemRepository) KeysFor(ctx context.Context, actorID, wallID string) ([]model.KeyItem, error) {
	query := `
		SELECT id, name, COALESCE(actor_id, ''), COALESCE(wall_id, ''), COALESCE(source_id, '')
		FROM items WHERE actor_id = $1 AND wall_id = $2
	`

	rows, err := r.db.Query(ctx, query, actorID, wallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.KeyItem
	for rows.Next() {
		var item model.KeyItem
		if err := rows.Scan(&item.ID, &item.Name, &item.ActorID, &item.WallID, &item.Source); err != nil {
			return nil, err
		}
		keys = append(keys, item)
	}

	return keys, rows.Err()
}

// KeyExists 世界物品栏或任意角色中是否存在该门的钥匙
func (r *ItemRepository) KeyExists(ctx context.Context, wallID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE wall_id = $1)`, wallID).Scan(&exists)
	return exists, err
}

// CreateItem 创建物品
func (r *ItemRepository) CreateItem(ctx context.Context, item model.KeyItem) error {
	query := `
		INSERT INTO items (id, name, actor_id, wall_id, source_id, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NOW())
	`
	_, err := r.db.Exec(ctx, query, item.ID, item.Name, item.ActorID, item.WallID, item.Source)
	return err
}
