// Package notify broadcasts import completion events to in-process
// subscribers such as the HTTP event stream and the CLI.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ClientImport/internal/core"
)

// subscriberBuffer is how many events a slow subscriber may fall behind
// before further events to it are dropped.
const subscriberBuffer = 10

// historySize is how many recent events are kept for replay to reconnecting
// subscribers.
const historySize = 100

// ImportCompleted is published after valid records of an import were
// committed.
type ImportCompleted struct {
	Seq       uint64             `json:"seq"`
	RunID     string             `json:"runId"`
	Template  string             `json:"template"`
	File      string             `json:"file"`
	Committed int64              `json:"committed"`
	Preview   core.PreviewResult `json:"preview"`
	At        time.Time          `json:"at"`
}

// NewImportCompleted builds the event for a finished import.
func NewImportCompleted(template string, summary core.ImportSummary, at time.Time) ImportCompleted {
	return ImportCompleted{
		RunID:     summary.RunID,
		Template:  template,
		File:      summary.File,
		Committed: summary.Committed,
		Preview:   summary.Preview,
		At:        at,
	}
}

// Hub fans events out to subscribers. Publishing never blocks.
//
// Sequence numbers start at 1 for every hub. Epoch tells hub instances apart,
// so a sequence number seen by a client is only meaningful with the epoch it
// was issued under.
type Hub struct {
	mu      sync.Mutex
	epoch   string
	seq     uint64
	history []ImportCompleted
	subs    map[chan ImportCompleted]struct{}
	dropped uint64
	closed  bool
}

// NewHub creates an empty hub with a fresh epoch.
func NewHub() *Hub {
	return &Hub{
		epoch: uuid.NewString()[:8],
		subs:  make(map[chan ImportCompleted]struct{}),
	}
}

// Epoch identifies this hub instance.
func (h *Hub) Epoch() string { return h.epoch }

// Subscribe returns a channel of future events and a function that
// unsubscribes and closes it. The channel is also closed when the hub is.
func (h *Hub) Subscribe() (<-chan ImportCompleted, func()) {
	_, ch, cancel := h.subscribe(0, false)
	return ch, cancel
}

// SubscribeAfter is Subscribe for a client resuming after sequence number
// after. It also returns the retained events newer than after, oldest first;
// no event is both replayed and delivered on the channel. An after beyond the
// current sequence number cannot come from this hub and replays everything
// retained.
func (h *Hub) SubscribeAfter(after uint64) ([]ImportCompleted, <-chan ImportCompleted, func()) {
	return h.subscribe(after, true)
}

func (h *Hub) subscribe(after uint64, replay bool) ([]ImportCompleted, <-chan ImportCompleted, func()) {
	ch := make(chan ImportCompleted, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return nil, ch, func() {}
	}
	var backlog []ImportCompleted
	if replay {
		if after > h.seq {
			after = 0
		}
		for _, ev := range h.history {
			if ev.Seq > after {
				backlog = append(backlog, ev)
			}
		}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return backlog, ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

// Publish assigns the next sequence number to ev and delivers it to every
// subscriber with room in its buffer. It returns the stamped event.
func (h *Hub) Publish(ev ImportCompleted) ImportCompleted {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ev
	}

	h.seq++
	ev.Seq = h.seq

	if len(h.history) == historySize {
		copy(h.history, h.history[1:])
		h.history = h.history[:historySize-1]
	}
	h.history = append(h.history, ev)

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped++
		}
	}
	return ev
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped for full subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close closes every subscriber channel. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}
