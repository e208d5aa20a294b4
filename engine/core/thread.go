package core

import (
	"runtime"

	"go.uber.org/atomic"
)

// ThreadID identifies the goroutine a call is running on. The device
// goroutine is expected to be pinned with runtime.LockOSThread, so the
// goroutine stands in for the OS thread that owns the hardware context.
type ThreadID uint64

// CurrentThreadID parses the id out of the "goroutine NNN [" stack header.
func CurrentThreadID() ThreadID {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return ThreadID(id)
}

// ThreadAffinity records the single thread allowed to touch a resource.
type ThreadAffinity struct {
	owner atomic.Uint64
}

// Bind makes the calling goroutine the owner.
func (a *ThreadAffinity) Bind() {
	a.owner.Store(uint64(CurrentThreadID()))
}

func (a *ThreadAffinity) Owner() ThreadID {
	return ThreadID(a.owner.Load())
}

// IsOwner reports whether the caller is the bound thread. An unbound
// affinity has no owner.
func (a *ThreadAffinity) IsOwner() bool {
	owner := a.owner.Load()
	return owner != 0 && owner == uint64(CurrentThreadID())
}
