package metrics

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Worker runs metric and alert delivery tasks off the request path.
// Enqueue never blocks: when the queue is full the task is dropped with a
// warning rather than delaying a decision.
type Worker interface {
	Shutdown()
	StartWorkers(n int)
	Enqueue(task func()) bool
}

type worker struct {
	logger   *logrus.Logger
	taskChan chan func()
	ctx      context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool
}

func NewWorker(logger *logrus.Logger, queueSize int) Worker {
	if queueSize <= 0 {
		queueSize = 1000
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{
		logger:   logger,
		taskChan: make(chan func(), queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Shutdown stops the workers. The channel is never closed: an Enqueue racing
// Shutdown may still send, and its task is simply never drained.
func (m *worker) Shutdown() {
	m.closed.Store(true)
	m.logger.Info("shutting down metrics workers")
	m.cancel()
	m.logger.Info("metrics workers stopped")
}

func (m *worker) StartWorkers(n int) {
	for i := 0; i < n; i++ {
		go func() {
			for {
				select {
				case task := <-m.taskChan:
					task()
				case <-m.ctx.Done():
					return
				}
			}
		}()
	}
}

func (m *worker) Enqueue(task func()) bool {
	if m.closed.Load() {
		return false
	}
	select {
	case m.taskChan <- task:
		return true
	default:
		m.logger.Warn("taskChan is full, dropping metrics task")
		return false
	}
}
