package async

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Run executes tasks concurrently, running at most limit tasks at a time.
// A limit of zero or less runs all tasks at once. Every task runs to
// completion regardless of other tasks failing; the returned error joins
// all task errors, each wrapped with its task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "net-main", Func: realizeNetwork},
//	    {Name: "sg-web", Func: realizeFirewall},
//	}
//	if err := Run(ctx, tasks, 4); err != nil {
//	    return err
//	}
func Run(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(tasks) {
		limit = len(tasks)
	}

	sem := semaphore.NewWeighted(int64(limit))
	resultChan := make(chan error, len(tasks))

	// Start all tasks; the semaphore gates how many run at once.
	for _, task := range tasks {
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				resultChan <- fmt.Errorf("%s: %w", task.Name, err)
				return
			}
			defer sem.Release(1)

			if err := task.Func(ctx); err != nil {
				resultChan <- fmt.Errorf("%s: %w", task.Name, err)
				return
			}
			resultChan <- nil
		}()
	}

	var errs []error
	for range len(tasks) {
		if err := <-resultChan; err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
