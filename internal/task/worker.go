package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// runner 执行到期任务的协程池
type runner struct {
	size   int
	queue  chan *Task
	quit   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

func newRunner(size int) *runner {
	if size <= 0 {
		size = 4
	}
	return &runner{
		size:   size,
		queue:  make(chan *Task, size*2),
		quit:   make(chan struct{}),
		logger: slog.Default().With("component", "TaskRunner"),
	}
}

func (r *runner) start(ctx context.Context) {
	for i := 0; i < r.size; i++ {
		r.wg.Add(1)
		go r.loop(ctx, i)
	}
}

func (r *runner) loop(ctx context.Context, worker int) {
	defer r.wg.Done()

	for {
		select {
		case <-r.quit:
			return
		case t := <-r.queue:
			r.run(ctx, worker, t)
		}
	}
}

// run 执行单个任务，panic 被恢复并记录
func (r *runner) run(ctx context.Context, worker int, t *Task) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Task panicked", "worker", worker, "taskID", t.ID, "target", t.Target, "panic", p)
		}
	}()

	if err := t.Run(ctx); err != nil {
		r.logger.Error("Task failed", "worker", worker, "taskID", t.ID, "target", t.Target, "error", err)
		return
	}

	attrs := []any{"worker", worker, "taskID", t.ID, "target", t.Target}
	if !t.Due.IsZero() {
		attrs = append(attrs, "late", time.Since(t.Due))
	}
	r.logger.Debug("Task executed", attrs...)
}

// enqueue 投递到期任务，队列满时阻塞直到协程池关闭
func (r *runner) enqueue(tasks []*Task) {
	for _, t := range tasks {
		select {
		case r.queue <- t:
		case <-r.quit:
			r.logger.Warn("Runner stopped, task dropped", "taskID", t.ID)
		}
	}
}

func (r *runner) stop() {
	close(r.quit)
	r.wg.Wait()
}
