package application

import (
	"context"
	"log/slog"
	"sync"
)

type Task func(ctx context.Context)

// UtteranceQueue runs tasks one at a time per room. Each room has a single
// waiting slot; Submit refuses a task when the slot is taken.
type UtteranceQueue struct {
	ctx     context.Context
	mu      sync.Mutex
	closed  bool
	workers map[string]chan Task
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewUtteranceQueue(ctx context.Context, logger *slog.Logger) *UtteranceQueue {
	return &UtteranceQueue{
		ctx:     ctx,
		workers: make(map[string]chan Task),
		logger:  logger,
	}
}

func (q *UtteranceQueue) Submit(room string, task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}

	ch, ok := q.workers[room]
	if !ok {
		ch = make(chan Task, 1)
		q.workers[room] = ch
		q.wg.Add(1)
		go q.work(room, ch)
	}

	select {
	case ch <- task:
		return true
	default:
		return false
	}
}

func (q *UtteranceQueue) work(room string, ch chan Task) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task, ok := <-ch:
			if !ok {
				return
			}
			q.run(room, task)
		}
	}
}

func (q *UtteranceQueue) run(room string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("utterance task panicked", "room", room, "panic", r)
		}
	}()
	task(q.ctx)
}

// Close stops accepting tasks and waits for the workers to drain.
func (q *UtteranceQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, ch := range q.workers {
		close(ch)
	}
	q.mu.Unlock()

	q.wg.Wait()
}
