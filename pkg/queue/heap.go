package queue

import "github.com/deepread-ai/deepread/pkg/task"

// item is one queued task plus the arrival sequence number that breaks
// priority ties in submission order.
type item struct {
	task task.Task
	seq  uint64
}

// taskHeap is a container/heap implementation ordered by priority
// descending, then sequence ascending. The pool's mutex guards all
// access.
type taskHeap []*item

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
