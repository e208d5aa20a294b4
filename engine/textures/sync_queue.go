package textures

import "sync"

// SynchronizedTaskQueue guards a TaskQueue with a mutex held for the length of
// one operation. There is no iteration: callers pop a task to look at it.
type SynchronizedTaskQueue struct {
	mu    sync.Mutex
	queue TaskQueue
}

func NewSynchronizedTaskQueue() *SynchronizedTaskQueue {
	return &SynchronizedTaskQueue{}
}

func (q *SynchronizedTaskQueue) PushFront(task *LoadTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue.PushFront(task)
}

func (q *SynchronizedTaskQueue) PushBack(task *LoadTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue.PushBack(task)
}

func (q *SynchronizedTaskQueue) PopFront() *LoadTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.PopFront()
}

func (q *SynchronizedTaskQueue) PopBack() *LoadTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.PopBack()
}

// Remove unlinks task, which must be a member.
func (q *SynchronizedTaskQueue) Remove(task *LoadTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue.Remove(task)
}

// TryRemove unlinks task if it is currently a member and reports whether it
// did. Membership is checked under the lock, so a task popped by another
// goroutine is left alone.
func (q *SynchronizedTaskQueue) TryRemove(task *LoadTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.queue.Contains(task) {
		return false
	}
	q.queue.Remove(task)
	return true
}

func (q *SynchronizedTaskQueue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.IsEmpty()
}

func (q *SynchronizedTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Len()
}
