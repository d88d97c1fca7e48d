package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recorder struct {
	mu      sync.Mutex
	reasons []string
	count   atomic.Int64
}

func (r *recorder) run(_ context.Context, reason string) error {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
	r.count.Add(1)
	return errors.New("failures keep the watcher alive")
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

func start(t *testing.T, opts Options, rec *recorder) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, opts, rec.run) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestRun_RequiresATrigger(t *testing.T) {
	err := Run(context.Background(), Options{}, func(context.Context, string) error { return nil })
	require.ErrorIs(t, err, ErrNothingToWatch)
}

func TestRun_RegistryChangesAreDebounced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "con-duct-gallery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("examples: []\n"), 0o600))
	rec := &recorder{}
	cancel, done := start(t, Options{RegistryPath: path, WatchRegistry: true, Debounce: 100 * time.Millisecond, Logger: quiet()}, rec)

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("examples: []\n# edit\n"), 0o600))
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "unrelated.txt"), []byte("x"), 0o600))

	require.Eventually(t, func() bool { return rec.count.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, []string{"registry changed"}, rec.snapshot())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestRun_IntervalAndStartup(t *testing.T) {
	rec := &recorder{}
	cancel, done := start(t, Options{Interval: 100 * time.Millisecond, RunOnStart: true, Logger: quiet()}, rec)

	require.Eventually(t, func() bool { return rec.count.Load() >= 3 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "startup", rec.snapshot()[0])
	assert.Contains(t, rec.snapshot()[1:], "interval")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestRun_MissingRegistryDirectory(t *testing.T) {
	err := Run(context.Background(), Options{
		RegistryPath:  filepath.Join(t.TempDir(), "missing", "g.yaml"),
		WatchRegistry: true,
		Logger:        quiet(),
	}, func(context.Context, string) error { return nil })
	require.Error(t, err)
}
