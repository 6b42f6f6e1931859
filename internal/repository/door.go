package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/store"
)

// DoorRepository 门仓库，实现 store.DoorStore
type DoorRepository struct {
	db *pgxpool.Pool
}

// NewDoorRepository 创建门仓库
func NewDoorRepository(db *pgxpool.Pool) *DoorRepository {
	return &DoorRepository{db: db}
}

const selectDoor = `
	SELECT id, x1, y1, x2, y2, door_state, door_kind, flags
	FROM walls WHERE id = $1
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoor(row rowScanner) (*model.Door, error) {
	var (
		door        model.Door
		state, kind int16
		flags       []byte
	)
	err := row.Scan(
		&door.ID,
		&door.Coordinates[0],
		&door.Coordinates[1],
		&door.Coordinates[2],
		&door.Coordinates[3],
		&state,
		&kind,
		&flags,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrDoorNotFound
	}
	if err != nil {
		return nil, err
	}

	door.State = model.DoorState(state)
	door.Kind = model.DoorKind(kind)
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &door.Flags); err != nil {
			return nil, fmt.Errorf("decode flags of %s: %w", door.ID, err)
		}
	}
	return &door, nil
}

// GetDoor 根据 ID 查找门
func (r *DoorRepository) GetDoor(ctx context.Context, id string) (*model.Door, error) {
	return scanDoor(r.db.QueryRow(ctx, selectDoor, id))
}

// UpdateDoor 行锁内读取、合并、写回
func (r *DoorRepository) UpdateDoor(ctx context.Context, id string, patch model.DoorPatch) (*model.Door, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	door, err := scanDoor(tx.QueryRow(ctx, selectDoor+" FOR UPDATE", id))
	if err != nil {
		return nil, err
	}

	door.Apply(patch)
	if err := writeDoor(ctx, tx, door); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return door, nil
}

// Upsert 写入或覆盖一扇门
func (r *DoorRepository) Upsert(ctx context.Context, door *model.Door) error {
	flags, err := json.Marshal(door.Flags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO walls (id, x1, y1, x2, y2, door_state, door_kind, flags, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			x1 = EXCLUDED.x1, y1 = EXCLUDED.y1, x2 = EXCLUDED.x2, y2 = EXCLUDED.y2,
			door_state = EXCLUDED.door_state, door_kind = EXCLUDED.door_kind,
			flags = EXCLUDED.flags, updated_at = NOW()
	`
	c := door.Coordinates
	_, err = r.db.Exec(ctx, query, door.ID, c[0], c[1], c[2], c[3], int16(door.State), int16(door.Kind), flags)
	return err
}

func writeDoor(ctx context.Context, tx pgx.Tx, door *model.Door) error {
	flags, err := json.Marshal(door.Flags)
	if err != nil {
		return err
	}

	query := `
		UPDATE walls
		SET x1 = $2, y1 = $3, x2 = $4, y2 = $5, door_state = $6, door_kind = $7, flags = $8, updated_at = NOW()
		WHERE id = $1
	`
	c := door.Coordinates
	_, err = tx.Exec(ctx, query, door.ID, c[0], c[1], c[2], c[3], int16(door.State), int16(door.Kind), flags)
	return err
}
