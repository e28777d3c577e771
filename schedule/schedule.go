package schedule

import (
	"sync"
	"time"

	"github.com/smart1986/go-sessionlink/logger"
)

type (
	Task struct {
		// TaskName identifies the task; re-adding the same name replaces it
		TaskName string
		TaskFunc func()
		// Interval in seconds, 0 means one-shot
		Interval int64
		// StartTime unix seconds, 0 means run on the next tick
		StartTime int64
	}

	Scheduler struct {
		mu     sync.Mutex
		tasks  map[string]*Task
		ticker *time.Ticker
		stop   chan struct{}
	}
)

func NewScheduler() *Scheduler {
	s := &Scheduler{
		tasks: make(map[string]*Task),
		stop:  make(chan struct{}),
	}
	s.ticker = time.NewTicker(1 * time.Second)
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	defer s.ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			s.runDue(time.Now().Unix())
		}
	}
}

func (s *Scheduler) runDue(now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, task := range s.tasks {
		if task.Interval == 0 && task.StartTime == 0 {
			doTask(task, now)
			delete(s.tasks, name)
			logger.Debug("task:", name, " remove")
			continue
		}
		if task.StartTime == 0 {
			doTask(task, now)
			continue
		}
		if task.Interval == 0 {
			if now >= task.StartTime {
				doTask(task, now)
				delete(s.tasks, name)
				logger.Debug("task:", name, " remove")
			}
			continue
		}
		if now-task.StartTime >= task.Interval {
			doTask(task, now)
		}
	}
}

func doTask(task *Task, now int64) {
	task.StartTime = now
	go func() {
		defer func() {
			if err := recover(); err != nil {
				logger.ErrorfWithStack("%s task error: %v", task.TaskName, err)
			}
		}()
		task.TaskFunc()
	}()
}

func (s *Scheduler) AddJob(task *Task) {
	if task == nil {
		return
	}
	if task.TaskName == "" {
		logger.Error("task name is empty")
		return
	}
	if task.TaskFunc == nil {
		logger.Error("task func is nil")
		return
	}
	s.mu.Lock()
	s.tasks[task.TaskName] = task
	s.mu.Unlock()
}

func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	delete(s.tasks, name)
	s.mu.Unlock()
}

func (s *Scheduler) Stop() {
	close(s.stop)
}
