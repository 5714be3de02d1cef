package resource

import (
	"context"

	"github.com/cfab/hwagent/internal/task"
)

// Result delivers one async load outcome.
type Result struct {
	Name  string
	Value any
	Err   error
}

// AsyncLoader runs cache loads as background tasks so startup does not block
// on slow resources.
type AsyncLoader struct {
	cache  *Cache
	runner *task.Runner
}

// NewAsyncLoader wires the cache to the task runner.
func NewAsyncLoader(cache *Cache, runner *task.Runner) *AsyncLoader {
	return &AsyncLoader{cache: cache, runner: runner}
}

// Load submits a background task that resolves the named resource and calls
// done with the outcome. The returned handle can be used to cancel or watch
// the load. Submission failures (queue full, runner stopped) are returned
// synchronously.
func (a *AsyncLoader) Load(name string, done func(Result)) (*task.Handle, error) {
	t := task.NewFunc("load_resource:"+name, func(ctx context.Context) error {
		value, err := a.cache.Get(ctx, name)
		if done != nil {
			done(Result{Name: name, Value: value, Err: err})
		}
		return err
	})
	return a.runner.Submit(t)
}

// LoadAll submits one background load per name. The first submission error
// aborts the rest.
func (a *AsyncLoader) LoadAll(names []string, done func(Result)) ([]*task.Handle, error) {
	handles := make([]*task.Handle, 0, len(names))
	for _, name := range names {
		h, err := a.Load(name, done)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}
