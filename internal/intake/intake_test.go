package intake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jo-hoe/mealmacro/internal/preview"
)

// countingStore wraps a MemoryStore and records every release per id.
type countingStore struct {
	*preview.MemoryStore
	mu       sync.Mutex
	puts     []string
	releases map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: preview.NewMemoryStore(), releases: map[string]int{}}
}

func (s *countingStore) Put(ctx context.Context, mimeType string, data []byte) (string, error) {
	id, err := s.MemoryStore.Put(ctx, mimeType, data)
	if err == nil {
		s.mu.Lock()
		s.puts = append(s.puts, id)
		s.mu.Unlock()
	}
	return id, err
}

func (s *countingStore) Release(ctx context.Context, id string) error {
	s.mu.Lock()
	s.releases[id]++
	s.mu.Unlock()
	return s.MemoryStore.Release(ctx, id)
}

func (s *countingStore) assertEachReleasedOnce(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.puts {
		if n := s.releases[id]; n != 1 {
			t.Errorf("preview %s released %d times, want 1", id, n)
		}
	}
}

// blockingCompressor holds every compression until released or cancelled.
type blockingCompressor struct {
	release chan struct{}
	started chan struct{}
}

func newBlockingCompressor() *blockingCompressor {
	return &blockingCompressor{release: make(chan struct{}), started: make(chan struct{}, 8)}
}

func (c *blockingCompressor) Compress(ctx context.Context, file File) (File, error) {
	c.started <- struct{}{}
	select {
	case <-c.release:
		return File{Name: file.Name, Type: "image/jpeg", Data: []byte("compressed")}, nil
	case <-ctx.Done():
		return file, ctx.Err()
	}
}

type passThroughCompressor struct{}

func (passThroughCompressor) Compress(_ context.Context, file File) (File, error) {
	return file, nil
}

type callbackRecorder struct {
	mu    sync.Mutex
	calls []*File
}

func (r *callbackRecorder) record(f *File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, f)
}

func (r *callbackRecorder) snapshot() []*File {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*File(nil), r.calls...)
}

func jpegFile(name string) File {
	return File{Name: name, Type: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}}
}

func waitTask(t *testing.T, task *Task) (File, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return task.Wait(ctx)
}

func TestIntake_SelectForwardsFile(t *testing.T) {
	store := newCountingStore()
	rec := &callbackRecorder{}
	in := New(passThroughCompressor{}, store, rec.record)
	defer in.Close(context.Background())

	task, err := in.Select(context.Background(), jpegFile("a.jpg"))
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	if in.PreviewID() == "" {
		t.Fatal("expected preview to exist right after Select")
	}

	out, err := waitTask(t, task)
	if err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if out.Name != "a.jpg" {
		t.Errorf("expected a.jpg, got %q", out.Name)
	}
	if in.Processing() {
		t.Error("expected processing to be over")
	}

	calls := rec.snapshot()
	if len(calls) != 1 || calls[0] == nil || calls[0].Name != "a.jpg" {
		t.Errorf("expected one callback with a.jpg, got %v", calls)
	}
}

func TestIntake_RejectsNonImage(t *testing.T) {
	store := newCountingStore()
	rec := &callbackRecorder{}
	in := New(passThroughCompressor{}, store, rec.record)

	_, err := in.Select(context.Background(), File{Name: "doc.pdf", Type: "application/pdf", Data: []byte("%PDF-")})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if in.PreviewID() != "" || store.Len() != 0 {
		t.Error("expected no preview for a rejected file")
	}
	if len(rec.snapshot()) != 0 {
		t.Error("expected no callback for a rejected file")
	}
}

func TestIntake_PreviewReleasedExactlyOnce(t *testing.T) {
	store := newCountingStore()
	in := New(passThroughCompressor{}, store, nil)

	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		task, err := in.Select(context.Background(), jpegFile(name))
		if err != nil {
			t.Fatalf("Select(%s) error: %v", name, err)
		}
		if _, err := waitTask(t, task); err != nil {
			t.Fatalf("Wait(%s) error: %v", name, err)
		}
	}
	if store.Len() != 1 {
		t.Errorf("expected only the current preview to be live, got %d", store.Len())
	}

	in.Close(context.Background())
	in.Close(context.Background())

	if store.Len() != 0 {
		t.Errorf("expected no live previews after Close, got %d", store.Len())
	}
	store.assertEachReleasedOnce(t)
}

func TestIntake_NewSelectionSupersedesRunningOne(t *testing.T) {
	store := newCountingStore()
	rec := &callbackRecorder{}
	comp := newBlockingCompressor()
	in := New(comp, store, rec.record)
	defer in.Close(context.Background())

	first, err := in.Select(context.Background(), jpegFile("first.jpg"))
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	<-comp.started

	second, err := in.Select(context.Background(), jpegFile("second.jpg"))
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}

	if _, err := waitTask(t, first); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected first task to be superseded, got %v", err)
	}

	<-comp.started
	close(comp.release)

	out, err := waitTask(t, second)
	if err != nil {
		t.Fatalf("second Wait error: %v", err)
	}
	if out.Name != "second.jpg" || out.Type != "image/jpeg" {
		t.Errorf("unexpected result %+v", out)
	}

	calls := rec.snapshot()
	if len(calls) != 1 || calls[0].Name != "second.jpg" {
		t.Errorf("expected only the second selection to reach the callback, got %d calls", len(calls))
	}
}

func TestIntake_RemoveRefusedWhileProcessing(t *testing.T) {
	store := newCountingStore()
	rec := &callbackRecorder{}
	comp := newBlockingCompressor()
	in := New(comp, store, rec.record)
	defer in.Close(context.Background())

	task, err := in.Select(context.Background(), jpegFile("a.jpg"))
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	<-comp.started

	if !in.Processing() {
		t.Fatal("expected processing state")
	}
	if err := in.Remove(context.Background()); !errors.Is(err, ErrProcessing) {
		t.Fatalf("expected ErrProcessing, got %v", err)
	}

	close(comp.release)
	if _, err := waitTask(t, task); err != nil {
		t.Fatalf("Wait error: %v", err)
	}

	if err := in.Remove(context.Background()); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if in.PreviewID() != "" || store.Len() != 0 {
		t.Error("expected preview to be released on removal")
	}

	calls := rec.snapshot()
	if len(calls) != 2 || calls[1] != nil {
		t.Errorf("expected a final nil callback after removal, got %v", calls)
	}
	store.assertEachReleasedOnce(t)
}

func TestIntake_CloseAbandonsRunningCompression(t *testing.T) {
	store := newCountingStore()
	comp := newBlockingCompressor()
	in := New(comp, store, nil)

	task, err := in.Select(context.Background(), jpegFile("a.jpg"))
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	<-comp.started

	in.Close(context.Background())

	if _, err := waitTask(t, task); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded after Close, got %v", err)
	}
	if _, err := in.Select(context.Background(), jpegFile("b.jpg")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected no live previews, got %d", store.Len())
	}
	store.assertEachReleasedOnce(t)
}

func TestIntake_RemoveWaitsForFileDelivery(t *testing.T) {
	store := newCountingStore()
	rec := &callbackRecorder{}
	delivering := make(chan struct{})
	proceed := make(chan struct{})
	onFileChange := func(f *File) {
		if f != nil {
			close(delivering)
			<-proceed
		}
		rec.record(f)
	}
	in := New(passThroughCompressor{}, store, onFileChange)
	defer in.Close(context.Background())

	task, err := in.Select(context.Background(), jpegFile("a.jpg"))
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	<-delivering

	removed := make(chan error, 1)
	go func() { removed <- in.Remove(context.Background()) }()

	select {
	case err := <-removed:
		t.Fatalf("Remove returned %v while the file was still being delivered", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(proceed)
	if _, err := waitTask(t, task); err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if err := <-removed; err != nil {
		t.Fatalf("Remove error: %v", err)
	}

	calls := rec.snapshot()
	if len(calls) != 2 || calls[0] == nil || calls[1] != nil {
		t.Fatalf("expected file then nil callbacks, got %v", calls)
	}
	store.assertEachReleasedOnce(t)
}
