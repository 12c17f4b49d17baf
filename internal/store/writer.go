package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

type Putter interface {
	Put(ctx context.Context, rec Record) error
}

// Notifier is told about writes that failed after the response went out.
type Notifier interface {
	NotifyPersistenceFailure(ctx context.Context, rec Record, err error) error
}

// Writer saves records without holding up the caller. The reading is already
// on its way back to the user when the write starts; a failure is logged and
// forwarded to the notifier, never surfaced. Set Sync to wait instead.
type Writer struct {
	put    Putter
	notify Notifier
	log    *zap.Logger
	sync   bool
	wg     sync.WaitGroup
}

func NewWriter(put Putter, notify Notifier, log *zap.Logger, syncWrites bool) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{put: put, notify: notify, log: log, sync: syncWrites}
}

// Save starts the write on a context detached from ctx's cancellation, so a
// returning handler does not abort it.
func (w *Writer) Save(ctx context.Context, rec Record) {
	ctx = context.WithoutCancel(ctx)
	if w.sync {
		w.write(ctx, rec)
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.write(ctx, rec)
	}()
}

// Wait blocks until every started write has finished.
func (w *Writer) Wait() { w.wg.Wait() }

func (w *Writer) write(ctx context.Context, rec Record) {
	putCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	start := time.Now()
	err := w.put.Put(putCtx, rec)
	if err == nil {
		w.log.Debug("record saved", zap.String("id", rec.ID), zap.Duration("elapsed", time.Since(start)))
		return
	}

	w.log.Error("record save failed",
		zap.String("id", rec.ID),
		zap.String("category", string(rec.Category)),
		zap.Error(err),
	)
	if w.notify == nil {
		return
	}
	// The put may have used up its deadline; the alert gets its own.
	notifyCtx, cancelNotify := context.WithTimeout(ctx, writeTimeout)
	defer cancelNotify()
	if nerr := w.notify.NotifyPersistenceFailure(notifyCtx, rec, err); nerr != nil {
		w.log.Warn("persistence alert failed", zap.String("id", rec.ID), zap.Error(nerr))
	}
}
