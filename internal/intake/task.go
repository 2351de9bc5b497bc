package intake

import "context"

// Task is the pending compression of one selection. It resolves exactly once.
type Task struct {
	done chan struct{}
	file File
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Done is closed once the task has resolved.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task resolves or ctx is done. A task replaced by a
// newer selection resolves with ErrSuperseded.
func (t *Task) Wait(ctx context.Context) (File, error) {
	select {
	case <-t.done:
		return t.file, t.err
	case <-ctx.Done():
		return File{}, ctx.Err()
	}
}

func (t *Task) resolve(file File, err error) {
	t.file = file
	t.err = err
	close(t.done)
}
