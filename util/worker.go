package util

import (
	"sync"

	"github.com/mohitkumar/automate/logger"
	"go.uber.org/zap"
)

type Job any

// Worker drains a buffered channel of jobs on a single goroutine.
type Worker struct {
	name     string
	stop     chan struct{}
	wg       *sync.WaitGroup
	handler  func(Job) error
	jobChan  chan Job
	stopOnce sync.Once
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		for {
			select {
			case job := <-w.jobChan:
				w.handle(job)
			case <-w.stop:
				// flush what is already queued
				for {
					select {
					case job := <-w.jobChan:
						w.handle(job)
					default:
						logger.Info("stopping worker", zap.String("worker", w.name))
						return
					}
				}
			}
		}
	}()
}

func (w *Worker) handle(job Job) {
	if err := w.handler(job); err != nil {
		logger.Error("error in executing job in worker", zap.String("worker", w.name), zap.Any("job", job), zap.Error(err))
	}
}

// Submit enqueues without blocking and reports whether the job was accepted.
func (w *Worker) Submit(job Job) bool {
	select {
	case w.jobChan <- job:
		return true
	default:
		logger.Warn("worker queue full, dropping job", zap.String("worker", w.name))
		return false
	}
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}

func NewWorker(name string, wg *sync.WaitGroup, handler func(Job) error, capacity int) *Worker {
	return &Worker{
		jobChan:  make(chan Job, capacity),
		name:     name,
		wg:       wg,
		stop:     make(chan struct{}),
		handler:  handler,
	}
}
