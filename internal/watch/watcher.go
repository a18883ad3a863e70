package watch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rjeczalik/notify"
)

const (
	DefaultSettle   = 500 * time.Millisecond
	eventBufferSize = 256
	watchedEvents   = notify.Create | notify.Write | notify.Remove | notify.Rename
)

// FilterCallback returns true if the event for path should be dropped
type FilterCallback func(path string) bool

// Watcher watches a directory tree and reports batches of changed paths once the tree has been
// quiet for the settle duration. A batch never overlaps the next one; while the consumer is busy
// new changes coalesce into a single pending batch.
type Watcher struct {
	watchDir  string
	rawEvents chan notify.EventInfo
	changes   chan []string
	settle    time.Duration
	done      chan struct{}
	wg        sync.WaitGroup

	filterMu sync.RWMutex
	filter   FilterCallback
}

func NewWatcher(watchDir string) *Watcher {
	return &Watcher{
		watchDir: watchDir,
		settle:   DefaultSettle,
		done:     make(chan struct{}),
	}
}

// SetSettle sets how long the tree must be quiet before a batch is emitted
func (w *Watcher) SetSettle(d time.Duration) {
	w.settle = d
}

// FilterPaths sets a callback that drops raw events before they are batched
func (w *Watcher) FilterPaths(callback FilterCallback) {
	w.filterMu.Lock()
	defer w.filterMu.Unlock()
	w.filter = callback
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("file watcher start", "dir", w.watchDir)

	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	if err := notify.Watch(w.watchDir+"/...", w.rawEvents, watchedEvents); err != nil {
		return err
	}

	w.start(ctx)
	return nil
}

// start runs the batching loop over rawEvents
func (w *Watcher) start(ctx context.Context) {
	w.changes = make(chan []string, 1)
	w.wg.Add(1)
	go w.batchEvents(ctx)
}

func (w *Watcher) Stop() {
	slog.Info("file watcher stopping")
	close(w.done)
	if w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}
	w.wg.Wait()
	slog.Info("file watcher stopped")
}

// Changes delivers sorted, de-duplicated batches of changed paths. It is closed when the watcher stops.
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

func (w *Watcher) filtered(path string) bool {
	w.filterMu.RLock()
	defer w.filterMu.RUnlock()
	return w.filter != nil && w.filter(path)
}

func (w *Watcher) batchEvents(ctx context.Context) {
	defer func() {
		close(w.changes)
		w.wg.Done()
	}()

	pending := mapset.NewThreadUnsafeSet[string]()
	timer := time.NewTimer(w.settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}
			if w.filtered(event.Path()) {
				continue
			}
			pending.Add(event.Path())
			// every new event pushes the batch back
			timer.Reset(w.settle)
		case <-timer.C:
			if pending.Cardinality() == 0 {
				continue
			}
			batch := pending.ToSlice()
			sort.Strings(batch)
			if w.emit(batch) {
				pending.Clear()
			} else {
				// consumer still busy with the previous batch, retry after another settle period
				timer.Reset(w.settle)
			}
		}
	}
}

func (w *Watcher) emit(batch []string) bool {
	select {
	case w.changes <- batch:
		slog.Debug("file watcher", "changes", len(batch))
		return true
	default:
		return false
	}
}
