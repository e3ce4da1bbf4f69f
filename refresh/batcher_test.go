package refresh

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
)

func items(n int) []models.NormalizedItem {
	out := make([]models.NormalizedItem, n)
	for i := range out {
		out[i] = models.NormalizedItem{ExternalID: fmt.Sprintf("item-%d", i)}
	}
	return out
}

func TestBatcherChunksInOrder(t *testing.T) {
	var chunks [][]models.NormalizedItem
	b := NewBatcher(3, func(chunk []models.NormalizedItem) {
		chunks = append(chunks, chunk)
	})

	for _, item := range items(7) {
		b.Add(item)
	}
	b.Flush()

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[1], 3)
	assert.Len(t, chunks[2], 1)

	seen := 0
	for _, chunk := range chunks {
		for _, item := range chunk {
			assert.Equal(t, fmt.Sprintf("item-%d", seen), item.ExternalID)
			seen++
		}
	}
}

func TestBatcherExactMultipleLeavesNoRemainder(t *testing.T) {
	flushes := 0
	b := NewBatcher(2, func(chunk []models.NormalizedItem) {
		flushes++
		assert.Len(t, chunk, 2)
	})

	for _, item := range items(4) {
		b.Add(item)
	}
	b.Flush()
	assert.Equal(t, 2, flushes, "the final flush on an empty buffer is a no-op")
}

func TestBatcherEmptyStream(t *testing.T) {
	b := NewBatcher(5, func([]models.NormalizedItem) {
		t.Fatal("flush must not run for an empty stream")
	})
	b.Flush()
}
