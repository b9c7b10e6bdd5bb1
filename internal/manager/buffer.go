package manager

import "webllmd/internal/bridge"

// chunkBuffer is the FIFO between the dispatch loop and the stream
// consumer: push at the tail, pop at the head. Guarded by Manager.mu.
type chunkBuffer struct {
	items []bridge.Chunk
}

func (b *chunkBuffer) push(c bridge.Chunk) { b.items = append(b.items, c) }

func (b *chunkBuffer) pop() (bridge.Chunk, bool) {
	if len(b.items) == 0 {
		return bridge.Chunk{}, false
	}
	c := b.items[0]
	b.items[0] = bridge.Chunk{}
	b.items = b.items[1:]
	if len(b.items) == 0 {
		b.items = nil
	}
	return c, true
}

func (b *chunkBuffer) clear() { b.items = nil }

func (b *chunkBuffer) len() int { return len(b.items) }
