package textures

import "go.uber.org/atomic"

// taskLink is the list node embedded in every LoadTask. next and prev belong
// to the queue the task is linked into. queue names that queue, nil while
// unlinked; it is atomic so a queue can test membership of a task that
// another queue is linking or unlinking.
type taskLink struct {
	next  *taskLink
	prev  *taskLink
	queue atomic.Pointer[TaskQueue]
	task  *LoadTask
}

// TaskQueue is an unsynchronized doubly linked list of load tasks using the
// link embedded in each task and a sentinel root. A task is a member of at
// most one queue at any time. The zero value is an empty queue.
type TaskQueue struct {
	root   taskLink
	length int
}

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.lazyInit()
	return q
}

func (q *TaskQueue) lazyInit() {
	if q.root.next == nil {
		q.root.next = &q.root
		q.root.prev = &q.root
	}
}

// IsEmpty returns true if the queue holds no task.
func (q *TaskQueue) IsEmpty() bool {
	return q.root.next == nil || q.root.next == &q.root
}

func (q *TaskQueue) Len() int {
	return q.length
}

// Contains reports whether task is linked into q.
func (q *TaskQueue) Contains(task *LoadTask) bool {
	return task.link.queue.Load() == q
}

// PushFront adds a task to the beginning of the queue.
func (q *TaskQueue) PushFront(task *LoadTask) {
	q.lazyInit()
	q.insert(&task.link, &q.root)
}

// PushBack adds a task to the end of the queue.
func (q *TaskQueue) PushBack(task *LoadTask) {
	q.lazyInit()
	q.insert(&task.link, q.root.prev)
}

// PopFront removes and returns the first task, or nil if the queue is empty.
func (q *TaskQueue) PopFront() *LoadTask {
	if q.IsEmpty() {
		return nil
	}
	l := q.root.next
	q.unlink(l)
	return l.task
}

// PopBack removes and returns the last task, or nil if the queue is empty.
func (q *TaskQueue) PopBack() *LoadTask {
	if q.IsEmpty() {
		return nil
	}
	l := q.root.prev
	q.unlink(l)
	return l.task
}

// Remove unlinks task from the queue. The task must be a member of q.
func (q *TaskQueue) Remove(task *LoadTask) {
	if task.link.queue.Load() != q {
		panic("textures: removing a task that is not a member of this queue")
	}
	q.unlink(&task.link)
}

func (q *TaskQueue) insert(l, at *taskLink) {
	if !l.queue.CompareAndSwap(nil, q) {
		panic("textures: task is already linked into a queue")
	}
	l.prev = at
	l.next = at.next
	at.next.prev = l
	at.next = l
	q.length++
}

func (q *TaskQueue) unlink(l *taskLink) {
	l.prev.next = l.next
	l.next.prev = l.prev
	l.next = nil
	l.prev = nil
	l.queue.Store(nil)
	q.length--
}
