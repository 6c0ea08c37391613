package logbus

import (
	"sync"
	"time"

	"github.com/kandev/kandev/internal/common/logger"
	"go.uber.org/zap"
)

// Sink receives every published LogEvent for fan-out to live sessions. The
// gateway's Registry implements this; the bus never knows about
// connections, only about the append-with-eviction ring (spec §4.2).
type Sink interface {
	BroadcastLogEvent(e LogEvent)
}

// Bus is a process-wide, single-writer-per-source, many-reader broadcast of
// immutable LogEvents, backed by a fixed-size ring buffer (spec default
// N=1000) that serves the last 50 on ExtensionConnect replay.
type Bus struct {
	mu       sync.Mutex
	ring     []LogEvent
	head     int // index of the oldest retained event
	size     int // number of retained events, <= cap(ring)
	capacity int

	sink Sink
	log  *logger.Logger

	lastPublish LogEvent
	haveLast    bool
}

// NewBus creates a bus with the given ring capacity (spec default 1000).
func NewBus(capacity int, log *logger.Logger) *Bus {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Bus{
		ring:     make([]LogEvent, capacity),
		capacity: capacity,
		log:      log.WithFields(zap.String("component", "logbus")),
	}
}

// SetSink wires the live-delivery target. Must be called before Publish is
// used from multiple goroutines to avoid a data race on sink.
func (b *Bus) SetSink(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

// Publish appends an event to the ring (evicting the oldest on overflow)
// and forwards it to the live sink. Idempotent over identical records:
// same timestamp truncated to the publish call + message + event_type
// within 100ms of the previous publish collapses into a no-op (spec §4.2).
func (b *Bus) Publish(e LogEvent) {
	b.mu.Lock()
	if b.haveLast &&
		e.Message == b.lastPublish.Message &&
		e.EventType == b.lastPublish.EventType &&
		absDuration(e.Timestamp.Sub(b.lastPublish.Timestamp)) <= 100*time.Millisecond {
		b.mu.Unlock()
		return
	}
	b.lastPublish = e
	b.haveLast = true

	idx := (b.head + b.size) % b.capacity
	b.ring[idx] = e
	if b.size < b.capacity {
		b.size++
	} else {
		b.head = (b.head + 1) % b.capacity
	}
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		sink.BroadcastLogEvent(e)
	}
}

// Replay returns up to the last n events (spec default 50), in insertion
// order, as a consistent point-in-time snapshot.
func (b *Bus) Replay(n int) []LogEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := n
	if count > b.size {
		count = b.size
	}
	out := make([]LogEvent, count)
	start := b.size - count
	for i := 0; i < count; i++ {
		idx := (b.head + start + i) % b.capacity
		out[i] = b.ring[idx]
	}
	return out
}

// Len returns the number of retained events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
