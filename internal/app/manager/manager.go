// Package manager wires chat events, the request queue, and the download
// worker together.
package manager

import (
	"context"
	"errors"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/Arimodu/wipbot/internal/app/archive"
	"github.com/Arimodu/wipbot/internal/app/command"
	"github.com/Arimodu/wipbot/internal/app/library"
	"github.com/Arimodu/wipbot/internal/app/queue"
	"github.com/Arimodu/wipbot/internal/app/worker"
	"github.com/Arimodu/wipbot/internal/domain/request"
	"github.com/Arimodu/wipbot/internal/infra/chat"
	"github.com/Arimodu/wipbot/internal/infra/config"
	"github.com/Arimodu/wipbot/internal/infra/fetch"
)

// Manager is the orchestrator: inbound chat goes through the interpreter
// into the queue, operator triggers drive the worker, and worker outcomes
// flow back to chat and the logs.
type Manager struct {
	cfg    *config.Config
	chat   chat.Integration
	queue  *queue.Queue
	interp *command.Interpreter
	worker *worker.Worker

	done      chan struct{}
	closeOnce sync.Once
}

// New builds the full pipeline from a loaded configuration and a chat
// integration.
func New(cfg *config.Config, chatInteg chat.Integration) *Manager {
	q := queue.New(cfg.Request.QueueSize)
	interp := command.NewInterpreter(cfg.CommandConfig(), q)

	fetcher := fetch.NewClient(cfg.Download.Timeout(), cfg.Download.UserAgent)
	extractor := archive.NewExtractor(cfg.Library.Dir)
	refresher := library.NewHookRefresher(cfg.Library.OnExtracted)

	w := worker.New(worker.Config{
		DownloadDir: cfg.Download.Dir,
		Limits:      cfg.Archive.Limits(),
		FeedSize:    cfg.Request.QueueSize,
	}, q, fetcher, extractor, refresher)

	m := &Manager{
		cfg:    cfg,
		chat:   chatInteg,
		queue:  q,
		interp: interp,
		worker: w,
		done:   make(chan struct{}),
	}

	chatInteg.OnMessage(m.handleMessage)
	q.Subscribe(func(items []request.QueueItem) {
		zlog.Debug().Msgf("queue changed: %d items", len(items))
	})
	go m.consumeEvents()

	return m
}

// Subscribe registers a queue-changed listener for UI collaborators.
func (m *Manager) Subscribe(l queue.Listener) {
	m.queue.Subscribe(l)
}

// Snapshot returns the queued items in FIFO order.
func (m *Manager) Snapshot() []request.QueueItem {
	return m.queue.Snapshot()
}

// StartNext triggers the worker on the oldest queued request. Returns false
// when the queue is empty.
func (m *Manager) StartNext() bool {
	return m.worker.StartNext()
}

// CancelDownload aborts the in-flight download, if any.
func (m *Manager) CancelDownload() {
	m.worker.Cancel()
}

// WorkerState returns the worker state as a string.
func (m *Manager) WorkerState() string {
	return m.worker.State().String()
}

// Progress returns the last reported download percentage.
func (m *Manager) Progress() int {
	return m.worker.Progress()
}

// Run starts the chat integration and blocks until it stops.
func (m *Manager) Run(ctx context.Context) error {
	return m.chat.Run(ctx)
}

// Done is closed when the manager shuts down.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops the worker and the event pump.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.worker.Close()
	})
}

// handleMessage routes one inbound chat message. Every failure is answered
// in chat and logged; nothing propagates.
func (m *Manager) handleMessage(msg request.ChatMessage) {
	zlog.Debug().Msgf("chat message received: %s: %s", msg.UserName, msg.Content)

	action := m.interp.Interpret(msg)
	switch action.Kind {
	case command.ActionIgnore:

	case command.ActionCancel:
		if _, ok := m.queue.CancelFirstMatching(msg.UserName); ok {
			zlog.Debug().Msgf("removed request from %s", msg.UserName)
			m.chat.SendMessage(m.cfg.GetMessage("undo_request"))
		}

	case command.ActionReject:
		zlog.Debug().Msgf("request from %s rejected: %s", msg.UserName, action.Code)
		m.chat.SendMessage(m.cfg.GetMessage(action.Code))

	case command.ActionSubmit:
		limit := m.cfg.Request.Quotas.Quotas().LimitFor(msg)
		if err := m.queue.Enqueue(action.Item, limit); err != nil {
			code := command.CodeQueueFull
			if errors.Is(err, queue.ErrQuotaExceeded) {
				code = command.CodeUserMaxRequests
			}
			zlog.Debug().Msgf("enqueue for %s failed: %v", msg.UserName, err)
			m.chat.SendMessage(m.cfg.GetMessage(code))
			return
		}
		zlog.Info().Msgf("queued request from %s: %s", msg.UserName, action.Item.DownloadURL)
		m.chat.SendMessage(m.cfg.GetMessage("wip_requested"))
	}
}

// consumeEvents pumps worker events into chat messages and log lines.
func (m *Manager) consumeEvents() {
	for {
		select {
		case <-m.done:
			return
		case e := <-m.worker.Events():
			switch e.Type {
			case worker.EventProgress:
				zlog.Debug().Msgf("download progress: %d%%", e.Percent)
			case worker.EventOutcome:
				msg := config.Interpolate(m.cfg.GetMessage(e.Code), e.Detail)
				m.chat.SendMessage(msg)
				zlog.Info().Msgf("download outcome: %s", e.Code)
			}
		}
	}
}
