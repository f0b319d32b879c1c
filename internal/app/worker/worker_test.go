package worker

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arimodu/wipbot/internal/app/archive"
	"github.com/Arimodu/wipbot/internal/domain/beatmap"
	"github.com/Arimodu/wipbot/internal/domain/request"
)

// fakeSource hands out items from a slice.
type fakeSource struct {
	mu    sync.Mutex
	items []request.QueueItem
}

func (s *fakeSource) Dequeue() (request.QueueItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return request.QueueItem{}, false
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, true
}

func (s *fakeSource) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// fakeFetcher writes canned bytes or fails.
type fakeFetcher struct {
	err     error
	content []byte
	block   bool // wait for ctx cancellation instead of finishing
}

func (f *fakeFetcher) DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	if onProgress != nil {
		onProgress(int64(len(f.content))/2, int64(len(f.content)))
		onProgress(int64(len(f.content)), int64(len(f.content)))
	}
	return os.WriteFile(destPath, f.content, 0o644)
}

// fakeExtractor returns a canned result or error.
type fakeExtractor struct {
	result *archive.Result
	err    error
}

func (e *fakeExtractor) Extract(ctx context.Context, zipPath string, limits archive.Limits) (*archive.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.result, e.err
}

// fakeRefresher records refresh calls.
type fakeRefresher struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeRefresher) Refreshed(folderPath string, info *beatmap.Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, folderPath)
}

func (r *fakeRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func testWorkerConfig(t *testing.T) Config {
	return Config{
		DownloadDir: t.TempDir(),
		Limits: archive.Limits{
			MaxEntries:           100,
			MaxUncompressedBytes: 100_000_000,
			ExtensionWhitelist:   []string{"dat", "ogg"},
		},
	}
}

// waitOutcome reads events until an outcome with one of the wanted codes
// arrives.
func waitOutcome(t *testing.T, w *Worker, codes ...string) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-w.Events():
			if e.Type != EventOutcome {
				continue
			}
			for _, code := range codes {
				if e.Code == code {
					return e
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for outcome %v", codes)
		}
	}
}

func TestWorker_SuccessfulDownload(t *testing.T) {
	source := &fakeSource{items: []request.QueueItem{
		request.NewQueueItem("alice", "https://example.com/map.zip"),
	}}
	refresher := &fakeRefresher{}
	extractor := &fakeExtractor{result: &archive.Result{
		FolderPath: "/library/wipbot_(Song)_(now)",
		Info:       &beatmap.Info{SongName: "Song"},
	}}

	w := New(testWorkerConfig(t), source, &fakeFetcher{content: []byte("zipdata")}, extractor, refresher)
	defer w.Close()

	require.True(t, w.StartNext())

	e := waitOutcome(t, w, CodeDownloadSuccess, CodeDownloadFailed)
	require.Equal(t, CodeDownloadSuccess, e.Code)
	require.NotNil(t, e.Result)
	assert.Equal(t, "Song", e.Result.Info.SongName)

	assert.Eventually(t, func() bool { return w.State() == StateIdle }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, refresher.count())
}

func TestWorker_EmptyQueue(t *testing.T) {
	w := New(testWorkerConfig(t), &fakeSource{}, &fakeFetcher{}, &fakeExtractor{}, nil)
	defer w.Close()

	assert.False(t, w.StartNext())
	assert.Equal(t, StateIdle, w.State())
}

func TestWorker_DownloadFailure(t *testing.T) {
	source := &fakeSource{items: []request.QueueItem{
		request.NewQueueItem("alice", "https://example.com/map.zip"),
	}}

	w := New(testWorkerConfig(t), source, &fakeFetcher{err: errors.New("connection refused")}, &fakeExtractor{}, nil)
	defer w.Close()

	require.True(t, w.StartNext())

	e := waitOutcome(t, w, CodeDownloadFailed, CodeDownloadSuccess)
	assert.Equal(t, CodeDownloadFailed, e.Code)

	// The worker survives the failure and stays usable.
	assert.Eventually(t, func() bool { return w.State() == StateIdle }, time.Second, 10*time.Millisecond)
}

func TestWorker_ExtractionErrorsMapToCodes(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedCode   string
		expectedDetail string
	}{
		{
			name:           "Too many entries",
			err:            archive.ErrTooManyEntries,
			expectedCode:   CodeTooManyEntries,
			expectedDetail: "100",
		},
		{
			name:         "Missing manifest",
			err:          archive.ErrMissingManifest,
			expectedCode: CodeMissingInfoDat,
		},
		{
			name:         "Subfolders",
			err:          archive.ErrContainsSubfolders,
			expectedCode: CodeContainsSubfolders,
		},
		{
			name:           "Too large",
			err:            archive.ErrTooLarge,
			expectedCode:   CodeTooLarge,
			expectedDetail: "100",
		},
		{
			name:         "Anything else",
			err:          errors.New("disk full"),
			expectedCode: CodeExtractionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{items: []request.QueueItem{
				request.NewQueueItem("alice", "https://example.com/map.zip"),
			}}

			w := New(testWorkerConfig(t), source, &fakeFetcher{content: []byte("zip")},
				&fakeExtractor{err: tt.err}, nil)
			defer w.Close()

			require.True(t, w.StartNext())

			e := waitOutcome(t, w, tt.expectedCode, CodeDownloadSuccess)
			assert.Equal(t, tt.expectedCode, e.Code)
			assert.Equal(t, tt.expectedDetail, e.Detail)
		})
	}
}

func TestWorker_SkippedEntriesWarning(t *testing.T) {
	source := &fakeSource{items: []request.QueueItem{
		request.NewQueueItem("alice", "https://example.com/map.zip"),
	}}
	extractor := &fakeExtractor{result: &archive.Result{
		FolderPath: "/library/wipbot_(Song)_(now)",
		Info:       &beatmap.Info{SongName: "Song"},
		Skipped:    3,
	}}

	w := New(testWorkerConfig(t), source, &fakeFetcher{content: []byte("zip")}, extractor, nil)
	defer w.Close()

	require.True(t, w.StartNext())

	e := waitOutcome(t, w, CodeBadExtension)
	assert.Equal(t, "3", e.Detail)

	waitOutcome(t, w, CodeDownloadSuccess)
}

func TestWorker_Cancel(t *testing.T) {
	source := &fakeSource{items: []request.QueueItem{
		request.NewQueueItem("alice", "https://example.com/map.zip"),
	}}

	w := New(testWorkerConfig(t), source, &fakeFetcher{block: true}, &fakeExtractor{}, nil)
	defer w.Close()

	require.True(t, w.StartNext())
	require.Eventually(t, func() bool { return w.State() == StateDownloading }, time.Second, 10*time.Millisecond)

	w.Cancel()

	e := waitOutcome(t, w, CodeDownloadCancelled, CodeDownloadFailed)
	assert.Equal(t, CodeDownloadCancelled, e.Code)
	assert.Eventually(t, func() bool { return w.State() == StateIdle }, time.Second, 10*time.Millisecond)
}

func TestWorker_FullFeedRefusesTrigger(t *testing.T) {
	source := &fakeSource{items: []request.QueueItem{
		request.NewQueueItem("alice", "https://example.com/a.zip"),
		request.NewQueueItem("bob", "https://example.com/b.zip"),
		request.NewQueueItem("carol", "https://example.com/c.zip"),
	}}

	cfg := testWorkerConfig(t)
	cfg.FeedSize = 1
	w := New(cfg, source, &fakeFetcher{block: true}, &fakeExtractor{}, nil)
	defer w.Close()

	// First item goes straight into the (blocked) pipeline.
	require.True(t, w.StartNext())
	require.Eventually(t, func() bool { return w.State() == StateDownloading }, time.Second, 10*time.Millisecond)

	// Second fills the only feed slot.
	require.True(t, w.StartNext())

	// Third must return immediately instead of blocking, and the refused
	// item stays in the queue.
	done := make(chan bool, 1)
	go func() { done <- w.StartNext() }()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("StartNext blocked on a full feed")
	}
	assert.Equal(t, 1, source.remaining())
}

func TestWorker_CancelWhenIdleIsNoop(t *testing.T) {
	w := New(testWorkerConfig(t), &fakeSource{}, &fakeFetcher{}, &fakeExtractor{}, nil)
	defer w.Close()

	w.Cancel()
	assert.Equal(t, StateIdle, w.State())
}

func TestWorker_SequentialItems(t *testing.T) {
	source := &fakeSource{items: []request.QueueItem{
		request.NewQueueItem("alice", "https://example.com/a.zip"),
		request.NewQueueItem("bob", "https://example.com/b.zip"),
	}}
	refresher := &fakeRefresher{}
	extractor := &fakeExtractor{result: &archive.Result{
		FolderPath: "/library/folder",
		Info:       &beatmap.Info{SongName: "Song"},
	}}

	w := New(testWorkerConfig(t), source, &fakeFetcher{content: []byte("zip")}, extractor, refresher)
	defer w.Close()

	require.True(t, w.StartNext())
	waitOutcome(t, w, CodeDownloadSuccess)

	require.True(t, w.StartNext())
	waitOutcome(t, w, CodeDownloadSuccess)

	assert.False(t, w.StartNext())
	assert.Equal(t, 2, refresher.count())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "downloading", StateDownloading.String())
	assert.Equal(t, "cancelling", StateCancelling.String())
}
