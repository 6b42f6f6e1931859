// Package trap 陷阱实例：导入、复用、定时删除
package trap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sudooom.trapdoors/internal/compendium"
	"sudooom.trapdoors/internal/model"
	"sudooom.trapdoors/internal/snowflake"
	"sudooom.trapdoors/internal/store"
	"sudooom.trapdoors/internal/task"
)

var ErrNoInstance = errors.New("TRAP_INSTANCE_NOT_FOUND")

const deleteTaskPrefix = "trap-delete:"

// Templates 模板来源
type Templates interface {
	Get(pack, id string) (compendium.Template, error)
}

// Scheduler 延迟删除调度
type Scheduler interface {
	Schedule(id, target string, d time.Duration, fn task.TaskFunc) error
	RemoveTask(id string) error
}

// Options 陷阱实例选项
type Options struct {
	Folder        string
	Lifetime      time.Duration
	ExtendOnReuse bool
}

// Instance 存活的陷阱实例
type Instance struct {
	TrapID       string          `json:"trapId"`
	Actor        model.TrapActor `json:"actor"`
	DeleteTaskID string          `json:"deleteTaskId"`
	DeleteAt     time.Time       `json:"deleteAt"`
	Trips        int             `json:"trips"`
}

// Result 一次触发的结果
type Result struct {
	Instance   Instance
	Template   compendium.Template
	Activation Activation
	Reused     bool
}

// Registry 模板引用 → 至多一个存活实例
type Registry struct {
	mu        sync.Mutex
	instances map[string]*Instance

	templates Templates
	actors    store.ActorStore
	scheduler Scheduler
	activator Activator
	node      *snowflake.Node
	opts      Options
	now       func() time.Time
	logger    *slog.Logger
}

// NewRegistry 创建陷阱实例注册表
func NewRegistry(templates Templates, actors store.ActorStore, scheduler Scheduler, activator Activator, node *snowflake.Node, opts Options) *Registry {
	if opts.Lifetime <= 0 {
		opts.Lifetime = 5 * time.Minute
	}
	if opts.Folder == "" {
		opts.Folder = "Door Traps"
	}
	return &Registry{
		instances: make(map[string]*Instance),
		templates: templates,
		actors:    actors,
		scheduler: scheduler,
		activator: activator,
		node:      node,
		opts:      opts,
		now:       time.Now,
		logger:    slog.Default().With("component", "TrapRegistry"),
	}
}

// Trip 触发陷阱：已有实例时复用，否则导入模板并安排删除
func (r *Registry) Trip(ctx context.Context, trapID string) (Result, error) {
	ref := compendium.SourceRef(compendium.PackTraps, trapID)

	tmpl, err := r.templates.Get(compendium.PackTraps, trapID)
	if err != nil {
		return Result{}, fmt.Errorf("trap template %s: %w", trapID, err)
	}
	activation, err := r.activator.Activate(tmpl)
	if err != nil {
		return Result{}, fmt.Errorf("trap template %s: %w", trapID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[ref]; ok {
		inst.Trips++
		if r.opts.ExtendOnReuse {
			r.scheduleDelete(ref, inst)
		}
		r.logger.Info("Trap instance reused",
			"trapId", trapID,
			"actorId", inst.Actor.ID,
			"trips", inst.Trips)
		return Result{Instance: *inst, Template: tmpl, Activation: activation, Reused: true}, nil
	}

	actor := model.TrapActor{
		ID:        r.node.Generate().Base36(),
		Name:      tmpl.Name,
		SourceID:  ref,
		Folder:    r.opts.Folder,
		CreatedAt: r.now(),
	}
	if err := r.actors.CreateActor(ctx, actor); err != nil {
		return Result{}, fmt.Errorf("import trap %s: %w", trapID, err)
	}

	inst := &Instance{
		TrapID:       trapID,
		Actor:        actor,
		DeleteTaskID: deleteTaskPrefix + actor.ID,
		Trips:        1,
	}
	r.instances[ref] = inst
	r.scheduleDelete(ref, inst)

	r.logger.Info("Trap instance imported",
		"trapId", trapID,
		"actorId", actor.ID,
		"folder", actor.Folder,
		"deleteAt", inst.DeleteAt)
	return Result{Instance: *inst, Template: tmpl, Activation: activation}, nil
}

// scheduleDelete 同一个任务 ID 重复调度时替换原任务
func (r *Registry) scheduleDelete(ref string, inst *Instance) {
	r.scheduleDeleteIn(ref, inst, r.opts.Lifetime)
}

func (r *Registry) scheduleDeleteIn(ref string, inst *Instance, d time.Duration) {
	actorID := inst.Actor.ID
	err := r.scheduler.Schedule(inst.DeleteTaskID, actorID, d,
		func(ctx context.Context, target string) error {
			return r.expire(ctx, ref, target)
		})
	if err != nil {
		r.logger.Warn("Failed to schedule trap deletion", "actorId", actorID, "error", err)
		return
	}
	inst.DeleteAt = r.now().Add(d)
}

// Restore 从陷阱文件夹里的角色重建实例表，权威会话启动时调用
//
// 每个模板只保留最新的角色并按剩余寿命安排删除；重复的和已过期的角色直接删除。
// 重启前的触发次数没有持久化，恢复的实例从 0 开始计数。
func (r *Registry) Restore(ctx context.Context) (int, error) {
	actors, err := r.actors.ListActors(ctx, r.opts.Folder)
	if err != nil {
		return 0, fmt.Errorf("list trap actors: %w", err)
	}

	prefix := compendium.SourceRef(compendium.PackTraps, "")
	latest := make(map[string]model.TrapActor)
	var stale []model.TrapActor
	for _, actor := range actors {
		if !strings.HasPrefix(actor.SourceID, prefix) {
			continue
		}
		// 按创建时间升序，后出现的更新
		if prev, ok := latest[actor.SourceID]; ok {
			stale = append(stale, prev)
		}
		latest[actor.SourceID] = actor
	}

	r.mu.Lock()
	now := r.now()
	restored := 0
	for ref, actor := range latest {
		if inst, ok := r.instances[ref]; ok {
			if inst.Actor.ID != actor.ID {
				stale = append(stale, actor)
			}
			continue
		}
		remaining := actor.CreatedAt.Add(r.opts.Lifetime).Sub(now)
		if remaining <= 0 {
			stale = append(stale, actor)
			continue
		}

		inst := &Instance{
			TrapID:       strings.TrimPrefix(ref, prefix),
			Actor:        actor,
			DeleteTaskID: deleteTaskPrefix + actor.ID,
		}
		r.instances[ref] = inst
		r.scheduleDeleteIn(ref, inst, remaining)
		restored++

		r.logger.Info("Trap instance restored",
			"trapId", inst.TrapID,
			"actorId", actor.ID,
			"deleteAt", inst.DeleteAt)
	}
	r.mu.Unlock()

	for _, actor := range stale {
		if err := r.actors.DeleteActor(ctx, actor.ID); err != nil && !errors.Is(err, store.ErrActorNotFound) {
			return restored, fmt.Errorf("delete stale trap actor %s: %w", actor.ID, err)
		}
		r.logger.Info("Stale trap actor deleted", "actorId", actor.ID, "sourceId", actor.SourceID)
	}
	return restored, nil
}

// expire 删除任务到期
func (r *Registry) expire(ctx context.Context, ref, actorID string) error {
	r.mu.Lock()
	inst, ok := r.instances[ref]
	if !ok || inst.Actor.ID != actorID {
		r.mu.Unlock()
		return nil
	}
	delete(r.instances, ref)
	r.mu.Unlock()

	if err := r.actors.DeleteActor(ctx, actorID); err != nil && !errors.Is(err, store.ErrActorNotFound) {
		return err
	}
	r.logger.Info("Trap instance deleted", "actorId", actorID, "trips", inst.Trips)
	return nil
}

// Dismiss 立即删除实例并取消定时删除
func (r *Registry) Dismiss(ctx context.Context, trapID string) error {
	ref := compendium.SourceRef(compendium.PackTraps, trapID)

	r.mu.Lock()
	inst, ok := r.instances[ref]
	if ok {
		delete(r.instances, ref)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNoInstance
	}

	if err := r.scheduler.RemoveTask(inst.DeleteTaskID); err != nil && !errors.Is(err, task.ErrTaskNotFound) {
		r.logger.Warn("Failed to cancel trap deletion", "taskId", inst.DeleteTaskID, "error", err)
	}
	if err := r.actors.DeleteActor(ctx, inst.Actor.ID); err != nil && !errors.Is(err, store.ErrActorNotFound) {
		return err
	}
	r.logger.Info("Trap instance dismissed", "trapId", trapID, "actorId", inst.Actor.ID)
	return nil
}

// DismissAll 删除所有实例（权威会话退出时调用）
func (r *Registry) DismissAll(ctx context.Context) {
	for _, inst := range r.Instances() {
		if err := r.Dismiss(ctx, inst.TrapID); err != nil && !errors.Is(err, ErrNoInstance) {
			r.logger.Warn("Failed to dismiss trap instance", "trapId", inst.TrapID, "error", err)
		}
	}
}

// Instances 当前存活实例的快照
func (r *Registry) Instances() []Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, *inst)
	}
	return out
}

// Lookup 按陷阱模板查询实例
func (r *Registry) Lookup(trapID string) (Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[compendium.SourceRef(compendium.PackTraps, trapID)]
	if !ok {
		return Instance{}, false
	}
	return *inst, true
}
