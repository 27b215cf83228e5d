package async

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

type recordingProcessor struct {
	mu        sync.Mutex
	processed []string
	err       error
	done      chan struct{}
}

func newRecordingProcessor(expected int) *recordingProcessor {
	return &recordingProcessor{done: make(chan struct{}, expected)}
}

func (p *recordingProcessor) Process(_ context.Context, trigger entity.JobTrigger) (*entity.JobRecord, error) {
	p.mu.Lock()
	p.processed = append(p.processed, trigger.JobID)
	p.mu.Unlock()
	p.done <- struct{}{}
	if p.err != nil {
		return nil, p.err
	}
	return &entity.JobRecord{
		UserID: trigger.UserID,
		JobID:  trigger.JobID,
		Status: constants.JobStatusCompleted,
	}, nil
}

func (p *recordingProcessor) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-p.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d of %d", i+1, n)
		}
	}
}

func TestQueueProcessesJobs(t *testing.T) {
	proc := newRecordingProcessor(3)
	q := NewJobQueue(proc, nil, WithWorkers(2), WithQueueSize(8))

	for _, id := range []string{"job-1", "job-2", "job-3"} {
		err := q.Enqueue(context.Background(), NewJob(entity.JobTrigger{
			JobID: id, UserID: "user-1", SourceRef: "receipts/" + id + ".png",
		}))
		require.NoError(t, err)
	}

	proc.waitFor(t, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.ElementsMatch(t, []string{"job-1", "job-2", "job-3"}, proc.processed)
}

func TestQueueContinuesAfterJobFailure(t *testing.T) {
	proc := newRecordingProcessor(2)
	proc.err = errors.New("provider down")
	q := NewJobQueue(proc, nil, WithWorkers(1))

	require.NoError(t, q.Enqueue(context.Background(), NewJob(entity.JobTrigger{JobID: "job-1", UserID: "u", SourceRef: "a"})))
	require.NoError(t, q.Enqueue(context.Background(), NewJob(entity.JobTrigger{JobID: "job-2", UserID: "u", SourceRef: "b"})))

	proc.waitFor(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Len(t, proc.processed, 2)
}

func TestQueueEnqueueAfterShutdownIsNoop(t *testing.T) {
	proc := newRecordingProcessor(1)
	q := NewJobQueue(proc, nil, WithWorkers(1))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	err := q.Enqueue(context.Background(), NewJob(entity.JobTrigger{JobID: "late", UserID: "u", SourceRef: "x"}))
	require.NoError(t, err)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Empty(t, proc.processed)
}

func TestWatcherPicksUpExistingTriggers(t *testing.T) {
	dir := t.TempDir()
	payload := []byte(`{"job_id":"job-1","user_id":"user-1","source_reference":"receipts/a.png"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job-1.json"), payload, 0o600))
	// Non-trigger files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0o600))

	proc := newRecordingProcessor(1)
	q := NewJobQueue(proc, nil, WithWorkers(1))
	w := NewTriggerWatcher(dir, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	watchDone := make(chan error, 1)
	go func() { watchDone <- w.Run(ctx) }()

	proc.waitFor(t, 1)
	cancel()
	select {
	case err := <-watchDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	q.Shutdown(shutdownCtx)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, []string{"job-1"}, proc.processed)

	// Consumed trigger files are deleted.
	_, err := os.Stat(filepath.Join(dir, "job-1.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestWatcherHandlesConcurrentDropBurst(t *testing.T) {
	dir := t.TempDir()
	proc := newRecordingProcessor(512)
	q := NewJobQueue(proc, nil, WithWorkers(4))
	w := NewTriggerWatcher(dir, q, nil)
	// Tight debounce so flushes interleave with incoming events.
	w.debounce = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	const drops = 50
	var wg sync.WaitGroup
	for i := 0; i < drops; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf(
				`{"job_id":"job-%d","user_id":"user-1","source_reference":"receipts/%d.png"}`, i, i)
			assert.NoError(t, os.WriteFile(
				filepath.Join(dir, fmt.Sprintf("job-%d.json", i)), []byte(payload), 0o600))
		}(i)
	}
	wg.Wait()

	// Delivery is at-least-once, so count distinct jobs rather than calls.
	assert.Eventually(t, func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		distinct := map[string]struct{}{}
		for _, id := range proc.processed {
			distinct[id] = struct{}{}
		}
		return len(distinct) == drops
	}, 10*time.Second, 10*time.Millisecond)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	q.Shutdown(shutdownCtx)
}

func TestWatcherSkipsMalformedTrigger(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{broken`), 0o600))
	good := []byte(`{"job_id":"job-2","user_id":"user-1","source_reference":"receipts/b.png"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), good, 0o600))

	proc := newRecordingProcessor(1)
	q := NewJobQueue(proc, nil, WithWorkers(1))
	w := NewTriggerWatcher(dir, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()

	proc.waitFor(t, 1)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	q.Shutdown(shutdownCtx)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, []string{"job-2"}, proc.processed)
}
