package util

import (
	"github.com/panjf2000/ants/v2"
	"github.com/smart1986/go-sessionlink/logger"
	"github.com/smart1986/go-sessionlink/system"
)

type WorkerPool struct {
	*ants.Pool
}

func NewPool(size int, options ...ants.Option) *WorkerPool {
	newPool, err := ants.NewPool(size, options...)
	if err != nil {
		panic(err)
	}
	p := &WorkerPool{
		Pool: newPool,
	}
	system.RegisterExitHandler(p)
	return p
}

// SubmitSafe runs task on the pool, falling back to inline execution when
// the pool rejects it, so a push is never silently lost.
func (w *WorkerPool) SubmitSafe(task func()) {
	if err := w.Submit(task); err != nil {
		logger.Warn("WorkerPool submit failed, running inline:", err)
		task()
	}
}

func (w *WorkerPool) OnSystemExit() {
	w.Release()
	logger.Info("WorkerPool released")
}
