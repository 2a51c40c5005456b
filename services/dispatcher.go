package services

import (
	"sync"

	"go.uber.org/zap"
)

// Dispatcher runs jobs serially per key and concurrently across keys.
// A worker goroutine exists only while its key has queued jobs.
type Dispatcher struct {
	mu     sync.Mutex
	queues map[int64][]func()
	closed bool
	wg     sync.WaitGroup
	log    *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{queues: make(map[int64][]func()), log: log}
}

// Submit queues job behind earlier jobs of the same key. It reports false
// once Close has been called.
func (d *Dispatcher) Submit(key int64, job func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	q, running := d.queues[key]
	d.queues[key] = append(q, job)
	if !running {
		d.wg.Add(1)
		go d.work(key)
	}
	return true
}

func (d *Dispatcher) work(key int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[key]
		if len(q) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		job := q[0]
		q[0] = nil
		d.queues[key] = q[1:]
		d.mu.Unlock()

		d.run(key, job)
	}
}

func (d *Dispatcher) run(key int64, job func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Handler panicked", zap.Int64("tg_id", key), zap.Any("panic", r))
		}
	}()
	job()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}
