// Package stream implements the chunked blob streaming engine.
//
// The engine maps arbitrary-length byte streams onto the bounded
// blocks and chunks of a backend store: draining stored blobs to a
// sink, ingesting source streams with an incremental checksum,
// duplicating blobs inside one store, and consolidating multipart
// upload parts into one blob under a single global offset space.
//
// Every operation runs sequentially end-to-end. Chunk offsets and the
// running digest are order-dependent, so there is no parallelism
// inside an operation; the surrounding server runs one operation per
// request on its own goroutine.
package stream

import (
	"context"
	"io"

	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger *logrus.Entry

// Store is the narrow backend surface the engine consumes.
// See the blob package for the contract of each method.
type Store interface {
	Blocks(ctx context.Context, d blob.Descriptor, from int64) ([]int64, error)
	Chunks(ctx context.Context, d blob.Descriptor, blockID, from int64) ([]blob.Chunk, error)
	StartBlock(ctx context.Context, d blob.Descriptor, blockID, offset int64) error
	WriteChunk(ctx context.Context, d blob.Descriptor, blockID, offset int64, payload []byte) (int64, error)
	MaxChunkSize(ctx context.Context, d blob.Descriptor) (int64, error)
	IsBoundary(blockID, offset int64) bool
	Meta(ctx context.Context, d blob.Descriptor) (blob.Meta, error)
	CommitMeta(ctx context.Context, d blob.Descriptor, m blob.Meta) error
}

// Streamer runs streaming operations against one backend store.
type Streamer struct {
	store Store
}

// New creates a streamer bound to the given store.
func New(store Store) *Streamer {
	logger = mlog.GetPackageLogger("pkg/stream")

	return &Streamer{store: store}
}

// writeFull persists a whole payload at (blockID, offset), re-offering
// the remainder whenever the store accepts fewer bytes than offered.
func (s *Streamer) writeFull(ctx context.Context, d blob.Descriptor, blockID, offset int64, payload []byte) error {
	for len(payload) > 0 {
		accepted, err := s.store.WriteChunk(ctx, d, blockID, offset, payload)
		if err != nil {
			return errors.Wrapf(err, "failed to write chunk at block %d offset %d", blockID, offset)
		}
		if accepted <= 0 || accepted > int64(len(payload)) {
			return errors.Errorf("store accepted %d of %d offered bytes", accepted, len(payload))
		}

		payload = payload[accepted:]
		offset += accepted
	}

	return nil
}

// releaseSink flushes and closes the sink when it supports either.
func releaseSink(sink io.Writer) {
	switch f := sink.(type) {
	case interface{ Flush() }:
		f.Flush()
	case interface{ Flush() error }:
		f.Flush()
	}

	if c, ok := sink.(io.Closer); ok {
		c.Close()
	}
}

// releaseSource closes the source when it supports closing.
func releaseSource(src io.Reader) {
	if c, ok := src.(io.Closer); ok {
		c.Close()
	}
}
