package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadCadence is the fixed cadence spec.md §6 mandates for the
// hot-reload watcher, used as a fallback poll in case the filesystem
// watcher misses an event (e.g. editors that write via rename).
const reloadCadence = 60 * time.Second

// Watcher re-reads path on file-change notifications and on a fixed
// cadence, publishing validated snapshots to a single-slot watch
// channel. A failed reload logs and keeps serving the last good
// snapshot; it never panics or exits the process.
type Watcher struct {
	path string
	log  *zap.Logger

	out chan *Config
}

// NewWatcher constructs a Watcher over an already-loaded initial config.
func NewWatcher(path string, initial *Config, log *zap.Logger) *Watcher {
	w := &Watcher{
		path: path,
		log:  log,
		out:  make(chan *Config, 1),
	}
	w.out <- initial
	return w
}

// Snapshots returns the watch channel. Readers should always drain to
// the latest value rather than assume every intermediate reload is
// observed.
func (w *Watcher) Snapshots() <-chan *Config {
	return w.out
}

// Run watches the config file until ctx is cancelled. Structural
// parameters (markets list, rate limits) take effect on next
// subscription per spec.md §6; this watcher only publishes new
// snapshots, it does not itself decide what is safe to hot-apply.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("config-watcher-unavailable-falling-back-to-poll-only", zap.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Add(w.path); err != nil {
			w.log.Warn("config-watcher-add-failed", zap.Error(err))
		}
	}

	ticker := time.NewTicker(reloadCadence)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	if watcher != nil {
		events = watcher.Events
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.reload()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config-reload-failed-keeping-previous", zap.String("path", w.path), zap.Error(err))
		return
	}

	select {
	case <-w.out:
	default:
	}
	w.out <- cfg
	w.log.Info("config-reloaded", zap.String("path", w.path))
}
