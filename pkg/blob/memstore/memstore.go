// Package memstore provides an in-memory blob store. It backs the
// standalone gateway mode and the engine tests; the capacity policies
// are configurable so small fixtures can exercise many blocks.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/pkg/errors"
)

const defaultPageSize = 32

// Store is an in-memory implementation of blob.Store.
type Store struct {
	blockSize int64
	maxChunk  int64
	pageSize  int
	accept    int64

	mu    sync.Mutex
	blobs map[string]*entry
}

type entry struct {
	ids       []int64
	blocks    map[int64]*memBlock
	meta      blob.Meta
	committed bool
}

type memBlock struct {
	id     int64
	end    int64
	chunks []blob.Chunk
}

// Option configures optional store behavior.
type Option func(*Store)

// WithPageSize sets how many blocks or chunks one listing call
// returns.
func WithPageSize(n int) Option {
	return func(s *Store) {
		s.pageSize = n
	}
}

// WithAcceptLimit caps how many bytes a single write accepts, below
// the advertised max chunk size. Used to exercise partial accepts.
func WithAcceptLimit(n int64) Option {
	return func(s *Store) {
		s.accept = n
	}
}

// New creates a store whose blocks close after blockSize bytes and
// whose writes are bounded by maxChunk bytes.
func New(blockSize, maxChunk int64, opts ...Option) *Store {
	s := &Store{
		blockSize: blockSize,
		maxChunk:  maxChunk,
		pageSize:  defaultPageSize,
		blobs:     make(map[string]*entry),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func key(d blob.Descriptor) string {
	return fmt.Sprintf("%s/%s/%s/%s/%d", d.Region, d.Bucket, d.Key, d.Upload, d.Part)
}

// Blocks returns the next run of block ids at or after from.
func (s *Store) Blocks(ctx context.Context, d blob.Descriptor, from int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.blobs[key(d)]
	if ok == false {
		return nil, blob.ErrNotFound
	}

	i := sort.Search(len(e.ids), func(i int) bool { return e.ids[i] >= from })

	page := make([]int64, 0, s.pageSize)
	for ; i < len(e.ids) && len(page) < s.pageSize; i++ {
		page = append(page, e.ids[i])
	}

	return page, nil
}

// Chunks returns the next run of chunks at or after the offset from
// within the given block.
func (s *Store) Chunks(ctx context.Context, d blob.Descriptor, blockID, from int64) ([]blob.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.block(d, blockID)
	if err != nil {
		return nil, err
	}

	i := sort.Search(len(b.chunks), func(i int) bool { return b.chunks[i].Offset >= from })

	page := make([]blob.Chunk, 0, s.pageSize)
	for ; i < len(b.chunks) && len(page) < s.pageSize; i++ {
		page = append(page, b.chunks[i])
	}

	return page, nil
}

// StartBlock opens a block at the given offset. Opening an already
// open block is a no-op: a block left empty at the end of one part
// may be reopened under the same id when the next part lands there.
func (s *Store) StartBlock(ctx context.Context, d blob.Descriptor, blockID, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.blobs[key(d)]
	if ok == false {
		e = &entry{blocks: make(map[int64]*memBlock)}
		s.blobs[key(d)] = e
	}

	if _, ok := e.blocks[blockID]; ok {
		return nil
	}

	e.blocks[blockID] = &memBlock{id: blockID, end: offset}

	i := sort.Search(len(e.ids), func(i int) bool { return e.ids[i] >= blockID })
	e.ids = append(e.ids, 0)
	copy(e.ids[i+1:], e.ids[i:])
	e.ids[i] = blockID

	return nil
}

// WriteChunk appends payload bytes to the given block and returns how
// many it accepted. Writes must continue exactly where the block ends;
// a gap or overlap is rejected.
func (s *Store) WriteChunk(ctx context.Context, d blob.Descriptor, blockID, offset int64, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.block(d, blockID)
	if err != nil {
		return 0, err
	}

	if offset != b.end {
		return 0, errors.Errorf("discontiguous write at offset %d, block %d ends at %d", offset, blockID, b.end)
	}

	accepted := int64(len(payload))
	if accepted > s.maxChunk {
		accepted = s.maxChunk
	}
	if s.accept > 0 && accepted > s.accept {
		accepted = s.accept
	}

	p := make([]byte, accepted)
	copy(p, payload[:accepted])

	b.chunks = append(b.chunks, blob.Chunk{Offset: offset, Size: accepted, Payload: p})
	b.end += accepted

	return accepted, nil
}

// MaxChunkSize returns the write ceiling.
func (s *Store) MaxChunkSize(ctx context.Context, d blob.Descriptor) (int64, error) {
	return s.maxChunk, nil
}

// IsBoundary reports whether a block holding bytes from blockID up to
// offset has reached its capacity.
func (s *Store) IsBoundary(blockID, offset int64) bool {
	return offset-blockID >= s.blockSize
}

// Meta returns the committed metadata of the descriptor.
func (s *Store) Meta(ctx context.Context, d blob.Descriptor) (blob.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.blobs[key(d)]
	if ok == false {
		return blob.Meta{}, blob.ErrNotFound
	}
	if e.committed == false {
		return blob.Meta{}, blob.ErrIncomplete
	}

	return e.meta, nil
}

// CommitMeta commits size and checksum in one update. An empty blob
// may commit metadata without ever opening a block.
func (s *Store) CommitMeta(ctx context.Context, d blob.Descriptor, m blob.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.blobs[key(d)]
	if ok == false {
		e = &entry{blocks: make(map[int64]*memBlock)}
		s.blobs[key(d)] = e
	}

	e.meta = m
	e.committed = true

	return nil
}

// Delete removes the blob. Deleting an absent blob is not an error.
func (s *Store) Delete(ctx context.Context, d blob.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, key(d))

	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// block looks up an existing block. Callers hold the mutex.
func (s *Store) block(d blob.Descriptor, blockID int64) (*memBlock, error) {
	e, ok := s.blobs[key(d)]
	if ok == false {
		return nil, blob.ErrNotFound
	}

	b, ok := e.blocks[blockID]
	if ok == false {
		return nil, blob.ErrNotFound
	}

	return b, nil
}
