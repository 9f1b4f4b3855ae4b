package mailbox

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WatchState represents the current state of a folder's polling loop.
type WatchState int

const (
	WatchIdle WatchState = iota
	WatchRunning
	WatchError
)

// WatchStatus holds the polling state for a single folder.
type WatchStatus struct {
	Folder   string
	State    WatchState
	LastPoll time.Time
	Error    error
}

// WatchEvent is emitted after each poll of a folder. New holds the
// records whose UID exceeds the folder's previous high-water mark;
// a failed poll carries Err instead.
type WatchEvent struct {
	Folder string
	New    []MessageRecord
	Err    error
}

// MessageSource is the slice of the mailbox the watcher polls.
type MessageSource interface {
	Messages(ctx context.Context, folder string) ([]MessageRecord, error)
}

// pollTimeout is the maximum time allowed for a single poll.
const pollTimeout = 30 * time.Second

// Watcher polls folders for new messages on a fixed interval. It is
// plain polling over authenticated sessions; the server is never asked
// to push.
type Watcher struct {
	src      MessageSource
	interval time.Duration
	log      *slog.Logger

	folders   []string
	statuses  map[string]*WatchStatus
	lastUID   map[string]uint32
	eventCh   chan WatchEvent
	triggerCh chan string
	stopCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewWatcher creates a Watcher polling src every interval. Intervals
// below one second are raised to the default of two minutes.
func NewWatcher(src MessageSource, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval < time.Second {
		interval = 2 * time.Minute
	}
	return &Watcher{
		src:       src,
		interval:  interval,
		log:       logger,
		statuses:  make(map[string]*WatchStatus),
		lastUID:   make(map[string]uint32),
		eventCh:   make(chan WatchEvent, 16),
		triggerCh: make(chan string, 16),
		stopCh:    make(chan struct{}),
	}
}

// WatchFolder registers a folder to poll. Must be called before Start.
func (w *Watcher) WatchFolder(folder string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.folders = append(w.folders, folder)
	w.statuses[folder] = &WatchStatus{
		Folder: folder,
		State:  WatchIdle,
	}
}

// Events returns the channel the watcher emits poll results on.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.eventCh
}

// Start launches one polling goroutine per registered folder. Each
// folder is polled immediately, then on every interval tick.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	folders := make([]string, len(w.folders))
	copy(folders, w.folders)
	w.mu.Unlock()

	for _, folder := range folders {
		go w.pollFolder(folder)
	}
}

// Stop halts all polling goroutines.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopCh)
	w.running = false
}

// Refresh triggers an immediate poll of one folder. The trigger is
// dropped when the queue is full.
func (w *Watcher) Refresh(folder string) {
	select {
	case w.triggerCh <- folder:
	default:
	}
}

// Statuses returns the current polling status of every registered
// folder.
func (w *Watcher) Statuses() []WatchStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	statuses := make([]WatchStatus, 0, len(w.statuses))
	for _, s := range w.statuses {
		statuses = append(statuses, *s)
	}
	return statuses
}

// pollFolder runs the polling loop for a single folder.
func (w *Watcher) pollFolder(folder string) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(folder)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.poll(folder)
		case triggered := <-w.triggerCh:
			if triggered == folder {
				w.poll(folder)
			}
		}
	}
}

// poll fetches the folder once and emits the records above the
// folder's UID high-water mark.
func (w *Watcher) poll(folder string) {
	w.setStatus(folder, WatchRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	records, err := w.src.Messages(ctx, folder)
	if err != nil {
		w.log.Warn("folder poll failed", "folder", folder, "error", err)
		w.setStatus(folder, WatchError, err)
		w.sendEvent(WatchEvent{Folder: folder, Err: err})
		return
	}

	w.mu.Lock()
	mark := w.lastUID[folder]
	w.mu.Unlock()

	var fresh []MessageRecord
	high := mark
	for _, rec := range records {
		if rec.UID > mark {
			fresh = append(fresh, rec)
		}
		if rec.UID > high {
			high = rec.UID
		}
	}

	w.mu.Lock()
	w.lastUID[folder] = high
	w.mu.Unlock()

	w.setStatus(folder, WatchIdle, nil)
	w.sendEvent(WatchEvent{Folder: folder, New: fresh})
}

func (w *Watcher) setStatus(folder string, state WatchState, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	status, ok := w.statuses[folder]
	if !ok {
		return
	}
	status.State = state
	status.Error = err
	if state == WatchIdle && err == nil {
		status.LastPoll = time.Now()
	}
}

// sendEvent emits without blocking; a lagging consumer loses events,
// never stalls the poll loop.
func (w *Watcher) sendEvent(ev WatchEvent) {
	select {
	case w.eventCh <- ev:
	default:
	}
}
