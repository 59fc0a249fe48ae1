package stream

import (
	"context"

	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
)

// Duplicate copies a fully written blob to a fresh descriptor in the
// same store, replaying every block and chunk at identical
// coordinates. The source metadata is committed verbatim on the
// destination: the content is unchanged, so the checksum is not
// recomputed. This is strictly cheaper than draining and re-ingesting
// and is the preferred path whenever both descriptors share a store.
func (s *Streamer) Duplicate(ctx context.Context, src, dst blob.Descriptor) (blob.Meta, error) {
	ctxLogger := mlog.GetMethodLogger(logger, "Streamer.Duplicate")

	nextBlock := int64(0)
	for {
		blocks, err := s.store.Blocks(ctx, src, nextBlock)
		if err != nil {
			err = errors.Wrap(err, "failed to list source blocks")
			ctxLogger.Error(err)
			return blob.Meta{}, err
		}
		if len(blocks) == 0 {
			break
		}

		for _, id := range blocks {
			if err := s.store.StartBlock(ctx, dst, id, id); err != nil {
				err = errors.Wrapf(err, "failed to start block %d", id)
				ctxLogger.Error(err)
				return blob.Meta{}, err
			}
			if err := s.duplicateBlock(ctx, src, dst, id); err != nil {
				ctxLogger.Error(err)
				return blob.Meta{}, err
			}
			nextBlock = id + 1
		}
	}

	meta, err := s.store.Meta(ctx, src)
	if err != nil {
		err = errors.Wrap(err, "failed to read source metadata")
		ctxLogger.Error(err)
		return blob.Meta{}, err
	}
	if err := s.store.CommitMeta(ctx, dst, meta); err != nil {
		err = errors.Wrap(err, "failed to commit metadata")
		ctxLogger.Error(err)
		return blob.Meta{}, err
	}

	return meta, nil
}

func (s *Streamer) duplicateBlock(ctx context.Context, src, dst blob.Descriptor, blockID int64) error {
	offset := blockID
	for {
		chunks, err := s.store.Chunks(ctx, src, blockID, offset)
		if err != nil {
			return errors.Wrapf(err, "failed to list chunks of block %d", blockID)
		}
		if len(chunks) == 0 {
			return nil
		}

		for _, c := range chunks {
			if err := s.writeFull(ctx, dst, blockID, c.Offset, c.Payload); err != nil {
				return err
			}
			offset = c.Offset + c.Size
		}
	}
}
