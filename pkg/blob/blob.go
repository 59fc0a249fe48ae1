// Package blob defines the chunked blob model shared by the streaming
// engine and the backend stores.
//
// A blob's payload is partitioned into blocks, identified by their
// starting byte offset, and each block holds contiguous chunks bounded
// by the store's maximum chunk size. Offsets are global: a chunk's
// offset is its position in the whole payload, and a block's id equals
// the offset of its first byte.
package blob

import (
	"context"

	"github.com/pkg/errors"
)

// Descriptor identifies one stored blob: a regular object or one part
// of a multipart upload. Part zero means the object itself; upload
// parts carry the upload id and a positive part number. Region selects
// which store instance holds the payload.
type Descriptor struct {
	Region string
	Bucket string
	Key    string
	Upload string
	Part   int
}

// Chunk is a contiguous byte range inside a block.
// Within a block, chunks are contiguous and ascending: the next
// chunk's offset equals the previous chunk's offset plus its size.
type Chunk struct {
	Offset  int64
	Size    int64
	Payload []byte
}

// Meta holds the committed size and checksum of a descriptor.
// Both are committed together once, when a write completes; a blob
// without committed meta is incomplete and invisible to readers.
type Meta struct {
	Size     int64
	Checksum string
}

var (
	// ErrNotFound is returned when the store holds no blob for the
	// given descriptor.
	ErrNotFound = errors.New("no such blob")

	// ErrIncomplete is returned when a blob has no committed metadata.
	ErrIncomplete = errors.New("blob has no committed metadata")
)

// Store is the chunk-level backend surface.
//
// Blocks and Chunks page forward-only: each call returns the next run
// at or after the given position, and an empty run signals exhaustion.
// WriteChunk may accept fewer bytes than offered; callers re-offer the
// remainder. IsBoundary owns the block capacity policy, the callers
// only obey it.
type Store interface {
	// Blocks returns the next run of block ids at or after from,
	// ascending. An empty run means no blocks remain.
	Blocks(ctx context.Context, d Descriptor, from int64) ([]int64, error)

	// Chunks returns the next run of chunks at or after the offset
	// from within the given block. An empty run means the block is
	// exhausted.
	Chunks(ctx context.Context, d Descriptor, blockID, from int64) ([]Chunk, error)

	// StartBlock opens a block for writing at the given offset.
	// Opening an already open block is a no-op.
	StartBlock(ctx context.Context, d Descriptor, blockID, offset int64) error

	// WriteChunk persists payload bytes at (blockID, offset) and
	// returns how many bytes were actually accepted. The payload is
	// only valid for the duration of the call; stores keep a copy.
	WriteChunk(ctx context.Context, d Descriptor, blockID, offset int64, payload []byte) (int64, error)

	// MaxChunkSize returns the current write ceiling for the
	// descriptor. It may vary over time and must not be cached.
	MaxChunkSize(ctx context.Context, d Descriptor) (int64, error)

	// IsBoundary reports whether a block that started at blockID is
	// full once the running offset has reached offset.
	IsBoundary(blockID, offset int64) bool

	// Meta returns the committed metadata of the descriptor.
	// Returns ErrIncomplete if nothing has been committed yet.
	Meta(ctx context.Context, d Descriptor) (Meta, error)

	// CommitMeta commits size and checksum as one atomic update.
	CommitMeta(ctx context.Context, d Descriptor, m Meta) error

	// Delete removes all blocks, chunks and metadata of the
	// descriptor. Deleting an absent blob is not an error.
	Delete(ctx context.Context, d Descriptor) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
