package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceInterval matches spec.md §4.8: a trailing edge is processed
// two seconds after the last observed change, coalescing events that
// arrive while a reload is pending.
const debounceInterval = 2 * time.Second

// Watcher watches the directory containing a config file and invokes
// onChange after a debounced modify/create/remove event, mirroring
// the structure of the teacher's internal/watcher (fsnotify.Watcher
// wrapped with a goroutine fan-in), generalized with a trailing-edge
// timer instead of firing per-event.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	fileName string
	log      zerolog.Logger
	done     chan struct{}
}

// NewWatcher starts watching the directory containing path. onChange
// is invoked on its own goroutine after the debounce window elapses
// following a relevant event.
func NewWatcher(path string, log zerolog.Logger, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		path:     path,
		fileName: filepath.Base(path),
		log:      log,
		done:     make(chan struct{}),
	}

	go w.run(onChange)
	return w, nil
}

func (w *Watcher) run(onChange func()) {
	var timer *time.Timer
	var timerC <-chan time.Time

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(debounceInterval)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounceInterval)
		}
		timerC = timer.C
	}

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.fileName {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				continue
			}
			resetTimer()

		case <-safeTimerC(timerC):
			onChange()
			timerC = nil

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Str("path", w.path).Msg("config watcher error")

		case <-w.done:
			return
		}
	}
}

// safeTimerC returns a nil channel (which blocks forever in a select)
// when no timer is pending, so the debounce branch never fires twice.
func safeTimerC(c <-chan time.Time) <-chan time.Time { return c }

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
