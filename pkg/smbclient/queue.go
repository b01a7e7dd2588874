package smbclient

import (
	"errors"
	"sync"
)

// DefaultQueueDepth is the number of jobs a TransferQueue holds.
const DefaultQueueDepth = 64

var (
	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = errors.New("smbclient: transfer queue closed")
	// ErrQueueFull is returned by Submit when the queue is at capacity.
	ErrQueueFull = errors.New("smbclient: transfer queue full")
)

// Job is one queued transfer.
type Job func() error

type queued struct {
	job  Job
	done chan error
}

// TransferQueue runs transfers one at a time in submission order.
type TransferQueue struct {
	jobs    chan queued
	stopped chan struct{}

	mu        sync.RWMutex
	closed    bool
	completed int
	failed    int
}

// NewTransferQueue starts a queue holding up to depth pending jobs.
func NewTransferQueue(depth int) *TransferQueue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	q := &TransferQueue{
		jobs:    make(chan queued, depth),
		stopped: make(chan struct{}),
	}
	go q.worker()
	return q
}

func (q *TransferQueue) worker() {
	defer close(q.stopped)
	for item := range q.jobs {
		err := item.job()
		q.mu.Lock()
		if err != nil {
			q.failed++
		} else {
			q.completed++
		}
		q.mu.Unlock()
		if err != nil {
			log.Debugf("Queued transfer failed: %v\n", err)
		}
		item.done <- err
	}
}

// Submit queues job without blocking. The returned channel receives the
// job's result once it has run.
func (q *TransferQueue) Submit(job Job) (<-chan error, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	item := queued{job: job, done: make(chan error, 1)}
	select {
	case q.jobs <- item:
		return item.done, nil
	default:
		return nil, ErrQueueFull
	}
}

// Pending returns the number of jobs waiting to run.
func (q *TransferQueue) Pending() int { return len(q.jobs) }

// Stats returns how many jobs finished with and without an error.
func (q *TransferQueue) Stats() (completed, failed int) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.completed, q.failed
}

// Close stops accepting jobs, runs the ones already queued and waits for
// the worker to exit.
func (q *TransferQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	<-q.stopped
}
