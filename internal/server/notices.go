package server

import (
	"sync"

	"todosync/internal/reconciler"
	"todosync/internal/service"
)

// DefaultNoticeCapacity is how many notices the server remembers.
const DefaultNoticeCapacity = 50

// Entry is a notice with its sequence number. Clients poll with the last
// sequence they saw.
type Entry struct {
	Seq int64 `json:"seq"`
	reconciler.Notice
}

// noticeRing keeps the most recent notices. It is attached to the
// reconciler as an observer.
type noticeRing struct {
	mu      sync.Mutex
	entries []Entry
	next    int64
	cap     int
}

func newNoticeRing(capacity int) *noticeRing {
	if capacity <= 0 {
		capacity = DefaultNoticeCapacity
	}
	return &noticeRing{cap: capacity, next: 1}
}

func (r *noticeRing) TasksChanged([]service.Task) {}

func (r *noticeRing) Notice(n reconciler.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Seq: r.next, Notice: n})
	r.next++
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
}

// since returns the entries after seq, oldest first.
func (r *noticeRing) since(seq int64) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Entry{}
	for _, e := range r.entries {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}
