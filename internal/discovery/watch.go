package discovery

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchEvent is sent to a Watch caller after each refresh: either a fresh
// agent list or an error from that refresh attempt.
type WatchEvent struct {
	Agents []Agent
	Err    error
}

// Watch refreshes the registry on every change to the project root's
// terminal-backend-observable state (driven by an fsnotify watch on the
// directory containing ACTIVE_AGENTS.json) and on a fallback interval
// tick, so the CLI's `discover-agents --watch` never goes more than
// interval without noticing a change even where fsnotify can't see the
// underlying terminal-backend state directly (e.g. new tmux panes). The
// returned channel is closed when ctx is done.
//
// Grounded on jaakkos-stringwork's fsnotify-driven file watch idiom,
// generalized from a single watched file to the discovery refresh trigger,
// with interval polling kept as the fallback the spec's own refresh model
// already assumes.
func (r *Registry) Watch(ctx context.Context, projectRoot, sessionName string, interval time.Duration) <-chan WatchEvent {
	if interval <= 0 {
		interval = DefaultStaleThreshold
	}
	out := make(chan WatchEvent)

	watcher, watchErr := fsnotify.NewWatcher()
	if watchErr == nil {
		_ = watcher.Add(r.store.Path())
	}

	go func() {
		defer close(out)
		if watcher != nil {
			defer watcher.Close()
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		refresh := func() {
			agents, err := r.Refresh(ctx, projectRoot, sessionName)
			select {
			case out <- WatchEvent{Agents: agents, Err: err}:
			case <-ctx.Done():
			}
		}

		refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			case event, ok := <-watcherEvents(watcher):
				if !ok {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					refresh()
				}
			}
		}
	}()

	return out
}

// watcherEvents returns w's event channel, or a nil channel (which never
// fires) when fsnotify wasn't available — letting Watch's select fall back
// to pure interval polling.
func watcherEvents(w *fsnotify.Watcher) chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.Events
}
