package policy

import (
	"context"
	"sync"
	"time"
)

// Watcher polls the store on a fixed interval and invokes the onChange
// callback whenever the document version advanced since the last observed
// poll. The version counter makes change detection cheap: no value
// diffing, no serialization.
type Watcher struct {
	store    *Store
	interval time.Duration
	onChange func(*Document)

	lastVersion uint64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWatcher creates a watcher over the store. interval <= 0 selects the
// store's cache TTL as the poll interval. onChange runs on the watcher
// goroutine; it must not block.
func NewWatcher(store *Store, interval time.Duration, onChange func(*Document)) *Watcher {
	if interval <= 0 {
		interval = store.cacheTTL
	}
	return &Watcher{
		store:    store,
		interval: interval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
}

// Start begins polling. The initial document is delivered synchronously
// before the first tick so the caller starts with a policy in hand.
func (w *Watcher) Start(ctx context.Context) error {
	doc, err := w.store.Get(ctx)
	if err != nil {
		return err
	}
	w.lastVersion = doc.Version
	if w.onChange != nil {
		w.onChange(doc)
	}

	w.wg.Add(1)
	go w.run()
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	doc, err := w.store.Reload(ctx)
	if err != nil {
		// Transient backend failure: keep serving the last good policy.
		return
	}
	if doc.Version == w.lastVersion {
		return
	}
	w.lastVersion = doc.Version
	if w.onChange != nil {
		w.onChange(doc)
	}
}

// Close stops polling and waits for the watcher goroutine to exit.
func (w *Watcher) Close() {
	if w == nil {
		return
	}
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}
