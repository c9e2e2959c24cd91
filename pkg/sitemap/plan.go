package sitemap

import "math"

// Chunk is one bounded partition of the catalog, rendered as one sitemap document.
type Chunk struct {
	Index int
	Size  int
}

// Offset returns the listing skip of the chunk's first entry.
func (c Chunk) Offset() int {
	return c.Index * c.Size
}

// Covers returns how many of total entries fall into this chunk.
// The last chunk of a plan may cover fewer than Size entries.
func (c Chunk) Covers(total int) int {
	remaining := total - c.Offset()
	switch {
	case remaining <= 0:
		return 0
	case remaining < c.Size:
		return remaining
	default:
		return c.Size
	}
}

// Plan splits total entries into ceil(total/chunkSize) chunks indexed
// 0..n-1 in ascending order. A non-positive total or chunk size yields an
// empty plan.
func Plan(total, chunkSize int) []Chunk {
	if total <= 0 || chunkSize <= 0 {
		return []Chunk{}
	}

	chunks := make([]Chunk, chunkCount(total, chunkSize))
	for i := range chunks {
		chunks[i] = Chunk{Index: i, Size: chunkSize}
	}
	return chunks
}

// MaxChunkIndex returns the largest chunk index whose entries all have an
// offset representable as int.
func MaxChunkIndex(chunkSize int) int {
	if chunkSize <= 0 {
		return 0
	}
	return (math.MaxInt - chunkSize) / chunkSize
}

// chunkCount is ceil(total/chunkSize) without overflow.
func chunkCount(total, chunkSize int) int {
	if total <= 0 || chunkSize <= 0 {
		return 0
	}
	n := total / chunkSize
	if total%chunkSize != 0 {
		n++
	}
	return n
}
