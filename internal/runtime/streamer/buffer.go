package streamer

import (
	"sync"

	"github.com/drblury/retailstream/internal/runtime/events"
)

// buffer holds generated events until the next flush.
type buffer struct {
	mu    sync.Mutex
	items []events.Envelope
}

func (b *buffer) append(burst []events.Envelope) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, burst...)
	return len(b.items)
}

// drain takes the contents and leaves the buffer empty.
func (b *buffer) drain() []events.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

func (b *buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// chunks splits batch into consecutive slices of at most size events.
func chunks(batch []events.Envelope, size int) [][]events.Envelope {
	if size <= 0 || len(batch) <= size {
		return [][]events.Envelope{batch}
	}
	out := make([][]events.Envelope, 0, (len(batch)+size-1)/size)
	for start := 0; start < len(batch); start += size {
		out = append(out, batch[start:min(start+size, len(batch))])
	}
	return out
}
