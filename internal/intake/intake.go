package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jo-hoe/mealmacro/internal/preview"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrProcessing      = errors.New("image is still being processed")
	ErrSuperseded      = errors.New("selection was superseded")
	ErrClosed          = errors.New("intake is closed")
)

// FileCompressor shrinks a selected file before it is handed on.
type FileCompressor interface {
	Compress(ctx context.Context, file File) (File, error)
}

// Intake owns the current selection of one user: its preview reference and
// the compression running for it.
type Intake struct {
	compressor   FileCompressor
	previews     preview.Store
	onFileChange func(*File)

	// notifyMu orders parent notifications: a removal cannot slip between
	// the end of a compression and the delivery of its file.
	notifyMu sync.Mutex

	mu         sync.Mutex
	previewID  string
	generation uint64
	cancel     context.CancelFunc
	processing bool
	closed     bool
}

// New creates an intake. onFileChange receives the compressed file of the
// current selection, or nil when the selection is removed. It may be nil.
func New(compressor FileCompressor, previews preview.Store, onFileChange func(*File)) *Intake {
	return &Intake{
		compressor:   compressor,
		previews:     previews,
		onFileChange: onFileChange,
	}
}

// Select replaces the current selection with file. The preview is available
// as soon as Select returns; compression continues in the returned task.
// Non-image files are rejected with ErrUnsupportedType and change nothing.
func (in *Intake) Select(ctx context.Context, file File) (*Task, error) {
	if !file.IsImage() {
		slog.Info("Intake: rejected non-image file", "name", file.Name, "type", file.Type)
		return nil, ErrUnsupportedType
	}

	id, err := in.previews.Put(ctx, file.Type, file.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview: %w", err)
	}

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		in.release(ctx, id)
		return nil, ErrClosed
	}
	previous := in.previewID
	in.previewID = id
	if in.cancel != nil {
		in.cancel()
	}
	in.generation++
	generation := in.generation
	taskCtx, cancel := context.WithCancel(ctx)
	in.cancel = cancel
	in.processing = true
	in.mu.Unlock()

	in.release(ctx, previous)

	slog.Debug("Intake: selection changed",
		"name", file.Name,
		"type", file.Type,
		"size_bytes", file.Size(),
		"preview_id", id,
		"generation", generation)

	task := newTask()
	go in.run(taskCtx, cancel, generation, file, task)
	return task, nil
}

func (in *Intake) run(ctx context.Context, cancel context.CancelFunc, generation uint64, file File, task *Task) {
	defer cancel()

	out, err := in.compressor.Compress(ctx, file)

	in.notifyMu.Lock()
	defer in.notifyMu.Unlock()

	in.mu.Lock()
	current := generation == in.generation && !in.closed
	if current {
		in.processing = false
		in.cancel = nil
	}
	in.mu.Unlock()

	if !current {
		slog.Debug("Intake: discarding superseded compression", "generation", generation)
		task.resolve(File{}, ErrSuperseded)
		return
	}
	if err != nil {
		task.resolve(File{}, err)
		return
	}

	if in.onFileChange != nil {
		in.onFileChange(&out)
	}
	task.resolve(out, nil)
}

// Remove clears the selection. It is refused with ErrProcessing while
// compression is running.
func (in *Intake) Remove(ctx context.Context) error {
	in.notifyMu.Lock()
	defer in.notifyMu.Unlock()

	in.mu.Lock()
	if in.processing {
		in.mu.Unlock()
		return ErrProcessing
	}
	id := in.previewID
	in.previewID = ""
	in.generation++
	in.mu.Unlock()

	in.release(ctx, id)
	if in.onFileChange != nil {
		in.onFileChange(nil)
	}
	return nil
}

// Close tears the intake down, abandoning any running compression and
// releasing the preview. Calling Close more than once is a no-op.
func (in *Intake) Close(ctx context.Context) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	id := in.previewID
	in.previewID = ""
	if in.cancel != nil {
		in.cancel()
		in.cancel = nil
	}
	in.generation++
	in.processing = false
	in.mu.Unlock()

	in.release(ctx, id)
}

// Processing reports whether a compression is running for the current selection.
func (in *Intake) Processing() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.processing
}

// PreviewID returns the id of the current preview, or "" without a selection.
func (in *Intake) PreviewID() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.previewID
}

func (in *Intake) release(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := in.previews.Release(context.WithoutCancel(ctx), id); err != nil {
		slog.Error("Intake: failed to release preview", "preview_id", id, "error", err)
	}
}
