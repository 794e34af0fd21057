package chat

import (
	"sync"
)

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout is a small worker pool that pushes one payload to many send
// queues. Delivery per target is fire-and-forget: a slow connection gets
// its frame dropped by Enqueue instead of holding up the rest.
type Fanout struct {
	jobs      chan fanoutJob
	closeOnce sync.Once
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		go func() {
			for job := range f.jobs {
				for _, c := range job.conns {
					c.Enqueue(job.payload)
				}
			}
		}()
	}
	return f
}

// Broadcast queues the payload for every listed connection.
func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.jobs <- fanoutJob{conns: conns, payload: payload}
}

// BroadcastExcept skips one connection (usually the originator).
func (f *Fanout) BroadcastExcept(conns []*Client, exceptConnID string, payload []byte) {
	if len(conns) == 0 {
		return
	}
	filtered := make([]*Client, 0, len(conns))
	for _, c := range conns {
		if c.ConnID == exceptConnID {
			continue
		}
		filtered = append(filtered, c)
	}
	f.Broadcast(filtered, payload)
}

func (f *Fanout) Close() {
	f.closeOnce.Do(func() { close(f.jobs) })
}
