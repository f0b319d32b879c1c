package worker

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/Arimodu/wipbot/internal/app/archive"
	"github.com/Arimodu/wipbot/internal/domain/beatmap"
	"github.com/Arimodu/wipbot/internal/domain/request"
)

// Fetcher downloads a URL to a local file with per-chunk progress.
type Fetcher interface {
	DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error
}

// Extractor validates and unpacks a downloaded archive into the library.
type Extractor interface {
	Extract(ctx context.Context, zipPath string, limits archive.Limits) (*archive.Result, error)
}

// Source supplies queued items; one is pulled per operator trigger.
type Source interface {
	Dequeue() (request.QueueItem, bool)
}

// Refresher is notified after a successful extraction so the catalog can
// re-index the new folder.
type Refresher interface {
	Refreshed(folderPath string, info *beatmap.Info)
}

// Config is the worker's immutable configuration snapshot, latched at
// construction so a config change cannot affect an in-flight item.
type Config struct {
	DownloadDir string
	Limits      archive.Limits
	FeedSize    int // must cover the request queue capacity
}

// Worker is the single sequential consumer of the request queue. It drives
// fetch, validation, and extraction for one item at a time and survives any
// single item's failure.
type Worker struct {
	mu         sync.Mutex
	state      State
	percent    int
	running    bool
	itemCancel context.CancelFunc

	cfg       Config
	source    Source
	fetcher   Fetcher
	extractor Extractor
	refresher Refresher

	feed   chan request.QueueItem
	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a worker. The consumer goroutine starts lazily on the first
// StartNext call.
func New(cfg Config, source Source, fetcher Fetcher, extractor Extractor, refresher Refresher) *Worker {
	if cfg.FeedSize <= 0 {
		cfg.FeedSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		state:     StateIdle,
		cfg:       cfg,
		source:    source,
		fetcher:   fetcher,
		extractor: extractor,
		refresher: refresher,
		feed:      make(chan request.QueueItem, cfg.FeedSize),
		events:    make(chan Event, 16),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Events returns the event channel. The channel is never closed; consumers
// should also select on their own shutdown signal.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// State returns the current worker state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Progress returns the last reported download percentage.
func (w *Worker) Progress() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.percent
}

// StartNext pops the oldest queued request into the worker feed and makes
// sure the consumer loop is running. Returns false when the queue is empty,
// the feed is full, or the worker is shutting down; the refused item stays in
// the queue. Never blocks.
func (w *Worker) StartNext() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx.Err() != nil {
		return false
	}
	// Triggers serialize on the mutex and the loop only drains the feed, so
	// a free slot seen here cannot be taken before the send below.
	if len(w.feed) == cap(w.feed) {
		zlog.Warn().Msg("download feed is full, trigger ignored")
		return false
	}

	item, ok := w.source.Dequeue()
	if !ok {
		return false
	}
	if !w.running {
		w.running = true
		go w.loop()
	}
	w.feed <- item
	return true
}

// Cancel aborts the in-flight item at its next cooperative checkpoint.
// Items still waiting in the request queue are untouched. A no-op when
// nothing is downloading.
func (w *Worker) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateDownloading {
		return
	}
	w.state = StateCancelling
	if w.itemCancel != nil {
		w.itemCancel()
	}
}

// Close aborts any in-flight item and stops the consumer goroutine.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.itemCancel != nil {
		w.itemCancel()
	}
	w.mu.Unlock()
	w.cancel()
}

func (w *Worker) loop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case item := <-w.feed:
			w.process(item)
		}
	}
}

func (w *Worker) process(item request.QueueItem) {
	ctx, cancel := context.WithCancel(w.ctx)

	w.mu.Lock()
	w.state = StateDownloading
	w.percent = 0
	w.itemCancel = cancel
	w.mu.Unlock()

	defer func() {
		cancel()
		w.mu.Lock()
		w.state = StateIdle
		w.itemCancel = nil
		w.mu.Unlock()

		if r := recover(); r != nil {
			// The worker must survive any single item's failure.
			zlog.Error().Msgf("download pipeline panic: %v", r)
			w.emit(Event{Type: EventOutcome, Code: CodeOther, Detail: "internal error"})
		}
	}()

	zlog.Info().Msgf("starting download for %s: %s", item.UserName, item.DownloadURL)
	w.emit(Event{Type: EventOutcome, Code: CodeDownloadStarted})
	w.runItem(ctx, item)
}

func (w *Worker) runItem(ctx context.Context, item request.QueueItem) {
	if err := os.MkdirAll(w.cfg.DownloadDir, 0o755); err != nil {
		zlog.Error().Msgf("create download dir: %v", err)
		w.emit(Event{Type: EventOutcome, Code: CodeOther, Detail: err.Error()})
		return
	}

	zipPath := filepath.Join(w.cfg.DownloadDir, "wipbot_tmp.zip")
	defer func() {
		if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
			zlog.Warn().Msgf("remove temp archive: %v", err)
		}
	}()

	err := w.fetcher.DownloadFile(ctx, item.DownloadURL, zipPath, func(written, total int64) {
		if total <= 0 {
			return
		}
		pct := int(written * 100 / total)
		w.mu.Lock()
		changed := pct != w.percent
		w.percent = pct
		w.mu.Unlock()
		if changed {
			w.emit(Event{Type: EventProgress, Percent: pct})
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			zlog.Info().Msgf("download cancelled: %s", item.DownloadURL)
			w.emit(Event{Type: EventOutcome, Code: CodeDownloadCancelled})
			return
		}
		zlog.Error().Msgf("download failed: %v", err)
		w.emit(Event{Type: EventOutcome, Code: CodeDownloadFailed})
		return
	}

	result, err := w.extractor.Extract(ctx, zipPath, w.cfg.Limits)
	if err != nil {
		w.emitExtractionError(ctx, err)
		return
	}

	if result.Skipped > 0 {
		w.emit(Event{Type: EventOutcome, Code: CodeBadExtension, Detail: strconv.Itoa(result.Skipped)})
	}
	if w.refresher != nil {
		w.refresher.Refreshed(result.FolderPath, result.Info)
	}
	zlog.Info().Msgf("extracted WIP to %s", result.FolderPath)
	w.emit(Event{Type: EventOutcome, Code: CodeDownloadSuccess, Result: result})
}

func (w *Worker) emitExtractionError(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		zlog.Info().Msg("extraction cancelled")
		w.emit(Event{Type: EventOutcome, Code: CodeDownloadCancelled})
	case errors.Is(err, archive.ErrTooManyEntries):
		w.emit(Event{Type: EventOutcome, Code: CodeTooManyEntries, Detail: strconv.Itoa(w.cfg.Limits.MaxEntries)})
	case errors.Is(err, archive.ErrMissingManifest):
		w.emit(Event{Type: EventOutcome, Code: CodeMissingInfoDat})
	case errors.Is(err, archive.ErrContainsSubfolders):
		w.emit(Event{Type: EventOutcome, Code: CodeContainsSubfolders})
	case errors.Is(err, archive.ErrTooLarge):
		w.emit(Event{Type: EventOutcome, Code: CodeTooLarge, Detail: strconv.FormatUint(w.cfg.Limits.MaxUncompressedBytes/1_000_000, 10)})
	default:
		zlog.Error().Msgf("extraction failed: %v", err)
		w.emit(Event{Type: EventOutcome, Code: CodeExtractionFailed})
	}
}

// emit sends an event without blocking. Events are dropped if the buffer is
// full or the worker is shutting down.
func (w *Worker) emit(e Event) {
	if w.ctx.Err() != nil {
		return
	}
	select {
	case w.events <- e:
	default:
	}
}
