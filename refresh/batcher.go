package refresh

import "github.com/UkraineNow-Intel/autoSA-backend/common/models"

// FlushFunc receives one full or final chunk. It owns its own error
// handling; a failed chunk never stops the stream.
type FlushFunc func(chunk []models.NormalizedItem)

// Batcher slices a stream of items into fixed-size chunks, preserving
// order and flushing each chunk exactly once.
type Batcher struct {
	size  int
	buf   []models.NormalizedItem
	flush FlushFunc
}

func NewBatcher(size int, flush FlushFunc) *Batcher {
	if size <= 0 {
		size = 500
	}
	return &Batcher{size: size, flush: flush}
}

// Add buffers one item, flushing when the chunk fills up.
func (b *Batcher) Add(item models.NormalizedItem) {
	b.buf = append(b.buf, item)
	if len(b.buf) >= b.size {
		b.Flush()
	}
}

// Flush hands the buffered remainder to the flush callback.
func (b *Batcher) Flush() {
	if len(b.buf) == 0 {
		return
	}
	chunk := b.buf
	b.buf = nil
	b.flush(chunk)
}
