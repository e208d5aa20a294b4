package containers

import "errors"

var (
	ErrStackFull  = errors.New("stack is full")
	ErrStackEmpty = errors.New("stack is empty")
)

// Stack is a LIFO container with an optional capacity. A capacity of zero
// means unbounded.
type Stack[T any] struct {
	data     []T
	capacity int
}

// Create a new Stack
func NewStack[T any](capacity int) *Stack[T] {
	s := &Stack[T]{capacity: capacity}
	if capacity > 0 {
		s.data = make([]T, 0, capacity)
	}
	return s
}

// Push adds an element on top of the stack
func (s *Stack[T]) Push(value T) error {
	if s.IsFull() {
		return ErrStackFull
	}
	s.data = append(s.data, value)
	return nil
}

// Pop removes and returns the top element
func (s *Stack[T]) Pop() (T, error) {
	var zero T
	if s.IsEmpty() {
		return zero, ErrStackEmpty
	}
	last := len(s.data) - 1
	value := s.data[last]
	s.data[last] = zero
	s.data = s.data[:last]
	return value, nil
}

// Peek returns the top element without removing it
func (s *Stack[T]) Peek() (T, error) {
	if s.IsEmpty() {
		var zero T
		return zero, ErrStackEmpty
	}
	return s.data[len(s.data)-1], nil
}

// Drain removes every element, calling fn on each from the top down.
func (s *Stack[T]) Drain(fn func(T)) {
	for !s.IsEmpty() {
		v, _ := s.Pop()
		if fn != nil {
			fn(v)
		}
	}
}

func (s *Stack[T]) Len() int {
	return len(s.data)
}

// IsEmpty checks if the stack is empty
func (s *Stack[T]) IsEmpty() bool {
	return len(s.data) == 0
}

// IsFull checks if the stack reached its capacity
func (s *Stack[T]) IsFull() bool {
	return s.capacity > 0 && len(s.data) >= s.capacity
}
