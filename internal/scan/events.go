package scan

import (
	"sync"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/domain"
)

// EventType names the asynchronous signals the engine emits toward the UI.
type EventType string

const (
	// EventDBProgress reports blocklist refresh progress, source by source.
	EventDBProgress EventType = "db-progress"
	// EventScanStarted fires once per scan, after the bookmark list is known.
	EventScanStarted EventType = "scan-started"
	// EventChecking fires when a bookmark's checks are dispatched, carrying
	// the transient checking status until the terminal verdict lands in a
	// scan-results delivery.
	EventChecking EventType = "checking"
	// EventScanProgress fires after every individual bookmark.
	EventScanProgress EventType = "scan-progress"
	// EventScanResults delivers a batched slice of per-bookmark results.
	EventScanResults EventType = "scan-results"
	// EventScanComplete marks natural completion.
	EventScanComplete EventType = "scan-complete"
	// EventScanCancelled marks a cooperative stop.
	EventScanCancelled EventType = "scan-cancelled"
)

// DBProgress is the payload of EventDBProgress. Current is 1-based.
type DBProgress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Source  string `json:"source"`
}

// Checking is the payload of EventChecking.
type Checking struct {
	BookmarkID domain.BookmarkID `json:"bookmarkId"`
	Status     domain.LinkStatus `json:"status"`
}

// Progress is the payload of EventScanProgress.
type Progress struct {
	Scanned    int               `json:"scanned"`
	Total      int               `json:"total"`
	BookmarkID domain.BookmarkID `json:"bookmarkId"`
}

// BookmarkResult pairs a bookmark with both of its verdicts.
type BookmarkResult struct {
	Bookmark domain.Bookmark     `json:"bookmark"`
	Link     domain.LinkResult   `json:"link"`
	Safety   domain.SafetyResult `json:"safety"`
}

// Summary is the payload of the terminal events.
type Summary struct {
	Scanned   int  `json:"scanned"`
	Total     int  `json:"total"`
	Cancelled bool `json:"cancelled"`
}

// Event is one engine signal. Exactly one payload field is set, matching Type.
type Event struct {
	Type       EventType        `json:"type"`
	DBProgress *DBProgress      `json:"dbProgress,omitempty"`
	Checking   *Checking        `json:"checking,omitempty"`
	Progress   *Progress        `json:"progress,omitempty"`
	Results    []BookmarkResult `json:"results,omitempty"`
	Summary    *Summary         `json:"summary,omitempty"`
}

// Events is a typed publish/subscribe bus between the engine and its
// consumers. Publishing never blocks and never fails: without subscribers an
// event is simply dropped, and a subscriber that stops draining loses events
// rather than stalling the scan.
type Events struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewEvents creates an empty bus.
func NewEvents() *Events {
	return &Events{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener with the given channel buffer. The returned
// cancel function removes the subscription and closes the channel; it is safe
// to call more than once.
func (e *Events) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	e.mu.Lock()
	id := e.next
	e.next++
	e.subs[id] = ch
	e.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Publish delivers the event to every subscriber whose buffer has room.
func (e *Events) Publish(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
