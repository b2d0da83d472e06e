package queue

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	log "github.com/sirupsen/logrus"
)

type memoryEntry struct {
	task       Task
	deliveries int64
}

// Memory is a single process queue. Nacked tasks go back to the tail; after maxDeliveries
// fetches a task is dropped like a dead stream entry.
type Memory struct {
	tasks         chan memoryEntry
	seq           atomic.Int64
	maxDeliveries int64
}

func NewMemory(capacity int, maxDeliveries int64) *Memory {
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}
	return &Memory{tasks: make(chan memoryEntry, capacity), maxDeliveries: maxDeliveries}
}

func (m *Memory) Publish(ctx context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	return m.push(ctx, memoryEntry{task: task})
}

func (m *Memory) push(ctx context.Context, entry memoryEntry) error {
	select {
	case m.tasks <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Fetch(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case entry := <-m.tasks:
			entry.deliveries++
			id := strconv.FormatInt(m.seq.Add(1), 10)
			if entry.deliveries > m.maxDeliveries {
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
					Errorf("task %s for %d exceeded %d deliveries, dropping", id, entry.task.RecipientID, m.maxDeliveries)
				continue
			}
			return &Delivery{
				Task: entry.task,
				ID:   id,
				ack:  func(context.Context) error { return nil },
				nack: func(ctx context.Context) error { return m.push(ctx, entry) },
			}, nil
		case <-timer.C:
			return nil, ErrNoTask
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Memory) Len() int {
	return len(m.tasks)
}
