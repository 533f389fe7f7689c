package sync

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notevec/notevec/internal/chunk"
)

func chunkSeq(n int) []*chunk.Chunk {
	chunks := make([]*chunk.Chunk, n)
	for i := range chunks {
		chunks[i] = &chunk.Chunk{ID: fmt.Sprintf("c%d", i), Seq: i}
	}
	return chunks
}

func TestComputeAdjacency_WindowBoundaries(t *testing.T) {
	chunks := chunkSeq(5)
	records := ComputeAdjacency(chunks)
	require.Len(t, records, 5)

	for i, r := range records {
		n := len(chunks)
		if i+1 < n {
			assert.Equal(t, chunks[i+1].ID, r.Next1, "chunk %d next1", i)
		} else {
			assert.Empty(t, r.Next1, "chunk %d next1", i)
		}
		if i+2 < n {
			assert.Equal(t, chunks[i+2].ID, r.Next2, "chunk %d next2", i)
		} else {
			assert.Empty(t, r.Next2, "chunk %d next2", i)
		}
		if i-1 >= 0 {
			assert.Equal(t, chunks[i-1].ID, r.Prev1, "chunk %d prev1", i)
		} else {
			assert.Empty(t, r.Prev1, "chunk %d prev1", i)
		}
		if i-2 >= 0 {
			assert.Equal(t, chunks[i-2].ID, r.Prev2, "chunk %d prev2", i)
		} else {
			assert.Empty(t, r.Prev2, "chunk %d prev2", i)
		}
	}
}

func TestComputeAdjacency_SingleChunk(t *testing.T) {
	records := ComputeAdjacency(chunkSeq(1))
	require.Len(t, records, 1)
	assert.Equal(t, AdjacencyRecord{}, records[0])

	// Encodes to delimiters only, which still decodes as a present
	// record, unlike a legacy empty string.
	encoded := records[0].Encode()
	assert.Equal(t, "|||", encoded)
	decoded, ok := DecodeAdjacency(encoded)
	assert.True(t, ok)
	assert.Empty(t, decoded.Neighbors())
}

func TestAdjacencyRecord_EncodeDecode(t *testing.T) {
	r := AdjacencyRecord{Prev2: "a", Prev1: "b", Next1: "c", Next2: "d"}
	assert.Equal(t, "a|b|c|d", r.Encode())

	decoded, ok := DecodeAdjacency("a|b|c|d")
	require.True(t, ok)
	assert.Equal(t, r, decoded)

	partial, ok := DecodeAdjacency("|b|c|")
	require.True(t, ok)
	assert.Equal(t, AdjacencyRecord{Prev1: "b", Next1: "c"}, partial)
	assert.Equal(t, []string{"b", "c"}, partial.Neighbors())
}

func TestDecodeAdjacency_Invalid(t *testing.T) {
	_, ok := DecodeAdjacency("")
	assert.False(t, ok, "legacy records have no adjacency")

	_, ok = DecodeAdjacency("a|b|c")
	assert.False(t, ok)

	_, ok = DecodeAdjacency("a|b|c|d|e")
	assert.False(t, ok)
}
