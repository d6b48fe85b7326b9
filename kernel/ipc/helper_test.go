package ipc

import (
	"testing"

	"github.com/tas0dev/SwiftCore-sub000/kernel/task"
)

// withCurrentThread sets the given thread id as current for the duration of
// a test and drains its mailbox slot afterwards so tests don't leak state
// into each other through the shared mailbox table.
func withCurrentThread(t *testing.T, id task.ThreadID) (task.ThreadID, func()) {
	t.Helper()
	task.SetCurrentThread(id, true)
	return id, func() {
		idx, ok := mailboxIndex(id)
		if ok {
			lock.Acquire()
			mailboxes[idx] = mailbox{}
			lock.Release()
		}
		task.SetCurrentThread(0, false)
	}
}
