// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/paperbrief/pkg/types"
)

// Broker fans progress events out to subscribers over bounded channels.
// Publish never blocks the pipeline: a subscriber that stops draining loses
// events, it does not stall processing. The persisted job record remains the
// source of truth for current state.
type Broker struct {
	mu     sync.Mutex
	subs   map[chan types.ProgressEvent]struct{}
	buffer int
	closed bool
}

// NewBroker creates a broker whose subscriber channels buffer up to buffer
// events.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{
		subs:   make(map[chan types.ProgressEvent]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called when done; it closes the channel.
func (b *Broker) Subscribe() (<-chan types.ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan types.ProgressEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber whose buffer has room.
func (b *Broker) Publish(ev types.ProgressEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("paper", ev.PaperID).Msg("progress subscriber full, dropping event")
		}
	}
}

// Close shuts the broker down and closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
