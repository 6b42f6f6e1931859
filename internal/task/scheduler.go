// Package task 延迟任务调度：单层时间轮负责计时，协程池负责执行
package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrSchedulerRunning    = errors.New("scheduler already running")
	ErrSchedulerNotRunning = errors.New("scheduler not running")
	ErrTaskInvalid         = errors.New("task is nil or has no id")
	ErrTaskNotFound        = errors.New("task not found")
)

// Stats 调度器状态快照
type Stats struct {
	Running bool `json:"running"`
	Cursor  int  `json:"cursor"`
	Pending int  `json:"pending"`
	Workers int  `json:"workers"`
}

// Scheduler 延迟任务调度器
type Scheduler struct {
	wheel  *TimeWheel
	runner *runner
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	mu      sync.RWMutex
	running bool
}

// NewScheduler 创建任务调度器，tick 为时间轮刻度
func NewScheduler(workers int, tick time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		wheel:  NewTimeWheel(tick),
		runner: newRunner(workers),
		ctx:    ctx,
		cancel: cancel,
		logger: slog.Default().With("component", "Scheduler"),
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}
	s.running = true

	s.runner.start(s.ctx)
	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("Scheduler started", "tick", s.wheel.Interval(), "workers", s.runner.size)
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wheel.C():
			if due := s.wheel.Tick(); len(due) > 0 {
				s.logger.Debug("Tasks due", "cursor", s.wheel.Cursor(), "count", len(due))
				s.runner.enqueue(due)
			}
		}
	}
}

// Stop 停止调度器，未到期的任务被丢弃
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.wheel.Stop()
	s.runner.stop()

	s.logger.Info("Scheduler stopped", "dropped", s.wheel.Len())
}

// Ticks 将时长换算为刻度数（向上取整，最少 1）
func (s *Scheduler) Ticks(d time.Duration) int {
	interval := s.wheel.Interval()
	n := int((d + interval - 1) / interval)
	if n < 1 {
		n = 1
	}
	return n
}

// AddTask 添加任务
func (s *Scheduler) AddTask(t *Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return ErrSchedulerNotRunning
	}
	if t == nil || t.ID == "" {
		return ErrTaskInvalid
	}

	s.wheel.Add(t)
	s.logger.Debug("Task added", "taskID", t.ID, "target", t.Target, "delay", t.Delay)
	return nil
}

// Schedule 在 d 之后以 target 调用 fn
func (s *Scheduler) Schedule(id, target string, d time.Duration, fn TaskFunc) error {
	t := NewTask(id, target, s.Ticks(d), fn)
	t.Due = time.Now().Add(d)
	return s.AddTask(t)
}

// RemoveTask 取消尚未执行的任务
func (s *Scheduler) RemoveTask(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return ErrSchedulerNotRunning
	}
	if !s.wheel.Remove(id) {
		return ErrTaskNotFound
	}

	s.logger.Debug("Task removed", "taskID", id)
	return nil
}

// IsRunning 调度器是否运行中
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Pending 尚未执行的任务数
func (s *Scheduler) Pending() int {
	return s.wheel.Len()
}

// Stats 当前状态
func (s *Scheduler) Stats() Stats {
	return Stats{
		Running: s.IsRunning(),
		Cursor:  s.wheel.Cursor(),
		Pending: s.wheel.Len(),
		Workers: s.runner.size,
	}
}
