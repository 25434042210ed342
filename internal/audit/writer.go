package audit

import (
	"context"
	"time"
)

// DefaultBufferSize is the Writer channel capacity used when none is given.
// Entries beyond it are dropped rather than blocking the caller.
const DefaultBufferSize = 256

// writeTimeout bounds a single audit insert.
const writeTimeout = 5 * time.Second

// Logger is the subset of logging.Logger the Writer needs.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Writer records audit entries asynchronously.
//
// Record never blocks: entries go onto a bounded channel and one goroutine
// (Run) writes them serially through its Repository. The Repository should
// own a database handle that nothing else uses.
//
// A nil *Writer discards every entry.
type Writer struct {
	repo   Repository
	logger Logger
	ch     chan *AuditLog
}

// NewWriter creates a Writer over repo. size <= 0 uses DefaultBufferSize.
func NewWriter(repo Repository, logger Logger, size int) *Writer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Writer{
		repo:   repo,
		logger: logger,
		ch:     make(chan *AuditLog, size),
	}
}

// Record enqueues an entry for writing. It reports false when the entry
// was dropped because the buffer is full.
func (w *Writer) Record(entry AuditLog) bool {
	if w == nil {
		return false
	}
	select {
	case w.ch <- &entry:
		return true
	default:
		if w.logger != nil {
			w.logger.Warn("audit log channel full, dropping entry",
				"action", entry.Action,
				"entity_type", entry.EntityType,
			)
		}
		return false
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left in the buffer and returns.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case entry := <-w.ch:
			w.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-w.ch:
					w.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(entry *AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := w.repo.Create(ctx, entry); err != nil && w.logger != nil {
		w.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}
