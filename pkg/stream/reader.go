package stream

import (
	"context"
	"io"

	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
)

// Drain writes the payload of a fully written blob to the sink, in
// offset order with no gaps or duplication. When closeSink is set the
// sink is flushed and closed on every exit path, faults included.
// Faults abort the drain and are returned without retry.
func (s *Streamer) Drain(ctx context.Context, d blob.Descriptor, sink io.Writer, closeSink bool) error {
	ctxLogger := mlog.GetMethodLogger(logger, "Streamer.Drain")

	if closeSink {
		defer releaseSink(sink)
	}

	nextBlock := int64(0)
	for {
		blocks, err := s.store.Blocks(ctx, d, nextBlock)
		if err != nil {
			err = errors.Wrap(err, "failed to list blocks")
			ctxLogger.Error(err)
			return err
		}
		if len(blocks) == 0 {
			return nil
		}

		for _, id := range blocks {
			if err := s.drainBlock(ctx, d, id, sink); err != nil {
				ctxLogger.Error(err)
				return err
			}
			nextBlock = id + 1
		}
	}
}

// drainBlock copies one block's chunks to the sink. The cursor starts
// at the block's own id and advances to the end of the last chunk of
// each run until the store reports the block exhausted.
func (s *Streamer) drainBlock(ctx context.Context, d blob.Descriptor, blockID int64, sink io.Writer) error {
	offset := blockID
	for {
		chunks, err := s.store.Chunks(ctx, d, blockID, offset)
		if err != nil {
			return errors.Wrapf(err, "failed to list chunks of block %d", blockID)
		}
		if len(chunks) == 0 {
			return nil
		}

		for _, c := range chunks {
			if _, err := sink.Write(c.Payload); err != nil {
				return errors.Wrap(err, "failed to write to sink")
			}
			offset = c.Offset + c.Size
		}
	}
}
