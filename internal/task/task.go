package task

import (
	"context"
	"time"
)

// TaskFunc 到期回调，target 为操作对象（如陷阱角色 ID）
type TaskFunc func(ctx context.Context, target string) error

// Task 延迟任务
type Task struct {
	ID     string    // 任务唯一ID，同 ID 重复添加时替换旧任务
	Target string    // 操作对象标识
	Delay  int       // 延迟刻度数（>= 1）
	Due    time.Time // 预计到期时间，仅用于日志
	Fn     TaskFunc

	rounds int // 剩余圈数，由时间轮维护
}

// NewTask 创建新任务
func NewTask(id, target string, delay int, fn TaskFunc) *Task {
	return &Task{
		ID:     id,
		Target: target,
		Delay:  delay,
		Fn:     fn,
	}
}

// Run 执行任务
func (t *Task) Run(ctx context.Context) error {
	if t.Fn == nil {
		return nil
	}
	return t.Fn(ctx, t.Target)
}
