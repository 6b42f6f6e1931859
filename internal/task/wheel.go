package task

import (
	"sync"
	"time"
)

// SlotCount 时间轮槽位数量
const SlotCount = 60

// TimeWheel 单层时间轮，延迟超过一圈的任务通过圈数计数
type TimeWheel struct {
	mu       sync.Mutex
	buckets  [SlotCount]*bucket
	cursor   int
	where    map[string]int // taskID -> 槽位
	interval time.Duration
	ticker   *time.Ticker
}

// NewTimeWheel 创建时间轮，interval 为每个刻度的时长
func NewTimeWheel(interval time.Duration) *TimeWheel {
	if interval <= 0 {
		interval = time.Second
	}
	tw := &TimeWheel{
		where:    make(map[string]int),
		interval: interval,
		ticker:   time.NewTicker(interval),
	}
	for i := range tw.buckets {
		tw.buckets[i] = newBucket()
	}
	return tw
}

// Interval 刻度时长
func (tw *TimeWheel) Interval() time.Duration {
	return tw.interval
}

// Add 添加任务，同 ID 的旧任务会被替换
func (tw *TimeWheel) Add(t *Task) {
	if t.Delay < 1 {
		t.Delay = 1
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.dropLocked(t.ID)

	slot := (tw.cursor + t.Delay) % SlotCount
	t.rounds = (t.Delay - 1) / SlotCount
	tw.buckets[slot].put(t)
	tw.where[t.ID] = slot
}

// Remove 按 ID 删除任务
func (tw *TimeWheel) Remove(id string) bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.dropLocked(id)
}

func (tw *TimeWheel) dropLocked(id string) bool {
	slot, ok := tw.where[id]
	if !ok {
		return false
	}
	delete(tw.where, id)
	return tw.buckets[slot].drop(id)
}

// Tick 推进一个刻度，返回到期任务
func (tw *TimeWheel) Tick() []*Task {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.cursor = (tw.cursor + 1) % SlotCount
	due := tw.buckets[tw.cursor].expire()
	for _, t := range due {
		delete(tw.where, t.ID)
	}
	return due
}

// Cursor 当前槽位
func (tw *TimeWheel) Cursor() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.cursor
}

// Len 尚未到期的任务数
func (tw *TimeWheel) Len() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return len(tw.where)
}

// C 时钟通道
func (tw *TimeWheel) C() <-chan time.Time {
	return tw.ticker.C
}

// Stop 停止时钟
func (tw *TimeWheel) Stop() {
	tw.ticker.Stop()
}
