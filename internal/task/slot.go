package task

import "sync"

// bucket 时间轮的一个槽位
type bucket struct {
	mu      sync.Mutex
	pending map[string]*Task
}

func newBucket() *bucket {
	return &bucket{pending: make(map[string]*Task)}
}

func (b *bucket) put(t *Task) {
	b.mu.Lock()
	b.pending[t.ID] = t
	b.mu.Unlock()
}

func (b *bucket) drop(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.pending[id]
	delete(b.pending, id)
	return ok
}

// expire 取出圈数归零的任务，其余任务圈数减一
func (b *bucket) expire() []*Task {
	b.mu.Lock()
	defer b.mu.Unlock()

	var due []*Task
	for id, t := range b.pending {
		if t.rounds > 0 {
			t.rounds--
			continue
		}
		due = append(due, t)
		delete(b.pending, id)
	}
	return due
}

func (b *bucket) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
