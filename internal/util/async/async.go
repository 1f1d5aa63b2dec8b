package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes multiple tasks in parallel and waits for all of them.
// Every failure is returned, joined, each prefixed with its task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "node-a", Func: terminateA},
//	    {Name: "node-b", Func: terminateB},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))

	for _, task := range tasks {
		go func() {
			err := task.Func(ctx)
			resultChan <- result{name: task.Name, err: err}
		}()
	}

	var errs []error
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
	}

	return errors.Join(errs...)
}

// Pool runs submitted tasks with bounded parallelism.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu      sync.Mutex
	running int
	queued  int
}

// NewPool returns a pool that runs at most limit tasks concurrently.
// A limit below one is treated as one.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// Go schedules task without blocking. The task waits for a free slot, then
// runs with ctx. If ctx is cancelled while waiting, onDone receives the
// context error and the task never runs. onDone may be nil.
func (p *Pool) Go(ctx context.Context, task Task, onDone func(name string, err error)) {
	p.wg.Add(1)
	p.mu.Lock()
	p.queued++
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		err := p.sem.Acquire(ctx, 1)

		p.mu.Lock()
		p.queued--
		if err == nil {
			p.running++
		}
		p.mu.Unlock()

		if err == nil {
			err = task.Func(ctx)
			p.sem.Release(1)

			p.mu.Lock()
			p.running--
			p.mu.Unlock()
		}

		if onDone != nil {
			onDone(task.Name, err)
		}
	}()
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stats reports how many tasks are running and how many wait for a slot.
func (p *Pool) Stats() (running, queued int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running, p.queued
}
