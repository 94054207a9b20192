// Package memory provides a heap-backed DelayedQueue for tests and local
// development. It honors the same dedup and removal semantics as the redis
// implementation but is not durable.
package memory

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/dosewatch/adherence-api/pkg/queue"
)

type item struct {
	job   queue.Job
	index int
}

type jobHeap []*item

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].job.FireAt.Before(h[j].job.FireAt) }
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *jobHeap) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

type MemoryQueue struct {
	mu    sync.Mutex
	heap  jobHeap
	byKey map[string]*item
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{byKey: make(map[string]*item)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job queue.Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.byKey[job.Key]; exists {
		return false, nil
	}

	it := &item{job: job}
	heap.Push(&q.heap, it)
	q.byKey[job.Key] = it
	return true, nil
}

func (q *MemoryQueue) Remove(_ context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, exists := q.byKey[key]
	if !exists {
		return nil
	}
	heap.Remove(&q.heap, it.index)
	delete(q.byKey, key)
	return nil
}

func (q *MemoryQueue) Due(_ context.Context, now time.Time, limit int) ([]queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var jobs []queue.Job
	for len(q.heap) > 0 && len(jobs) < limit {
		next := q.heap[0]
		if next.job.FireAt.After(now) {
			break
		}
		heap.Pop(&q.heap)
		delete(q.byKey, next.job.Key)
		jobs = append(jobs, next.job)
	}
	return jobs, nil
}

// Len reports the number of scheduled jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

func (q *MemoryQueue) Close() error {
	return nil
}
