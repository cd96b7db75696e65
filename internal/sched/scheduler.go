// Package sched runs the agent's periodic maintenance tasks, currently
// socket reconciliation and the stale-block sweep, each on its own ticker.
package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrTaskCompleted stops a task's loop without reporting a failure.
var ErrTaskCompleted = errors.New("task completed")

type Task interface {
	Name() string
	Interval() time.Duration
	RunOnStart() bool
	Run(ctx context.Context) error
}

type Scheduler struct {
	mu      sync.Mutex
	tasks   []Task
	started bool
	wg      sync.WaitGroup
	log     *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{log: logger}
}

func (s *Scheduler) Register(task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if task.Interval() <= 0 {
		return fmt.Errorf("task %s has invalid interval %s", task.Name(), task.Interval())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("cannot register task %s after scheduler start", task.Name())
	}

	s.tasks = append(s.tasks, task)
	return nil
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	for _, task := range tasks {
		s.wg.Add(1)
		go s.runTaskLoop(ctx, task)
	}
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runTaskLoop(ctx context.Context, task Task) {
	defer s.wg.Done()

	run := func() bool {
		if err := task.Run(ctx); err != nil {
			if errors.Is(err, ErrTaskCompleted) {
				s.log.Info("task completed", "task", task.Name())
				return false
			}
			s.log.Error("task failed", "task", task.Name(), "err", err)
		}
		return true
	}

	if task.RunOnStart() && !run() {
		return
	}

	ticker := time.NewTicker(task.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !run() {
				return
			}
		}
	}
}

// Func adapts a plain function into a Task.
type Func struct {
	TaskName     string
	TaskInterval time.Duration
	OnStart      bool
	Fn           func(ctx context.Context) error
}

func (f Func) Name() string            { return f.TaskName }
func (f Func) Interval() time.Duration { return f.TaskInterval }
func (f Func) RunOnStart() bool        { return f.OnStart }

func (f Func) Run(ctx context.Context) error {
	return f.Fn(ctx)
}
