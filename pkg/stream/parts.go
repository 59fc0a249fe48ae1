package stream

import (
	"context"

	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/gitter-badger/pithos/pkg/digest"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
)

// Notifier receives progress callbacks while parts are consolidated.
// Part numbers are the 1-based position in the consolidation order.
type Notifier interface {
	// Block reports that the destination block blockID was opened
	// while copying the given part.
	Block(part int, blockID int64)

	// Chunk reports that a chunk of size bytes landed in the
	// destination while copying the given part.
	Chunk(part int, size int64)
}

type discardNotifier struct{}

func (discardNotifier) Block(int, int64) {}
func (discardNotifier) Chunk(int, int64) {}

// Consolidate merges an ordered sequence of completed upload parts
// into one blob under the destination descriptor.
//
// A running global offset, the total byte length of all prior parts,
// shifts every part's local coordinates into one address space: local
// block b lands at block global+b and a chunk at local offset o lands
// at offset global+o. One digest spans the whole consolidation, so
// the committed checksum covers the concatenation of all parts. The
// global offset only grows and each part's local offsets start at
// zero, so destination coordinates never collide between parts.
//
// Consolidating zero parts commits an empty blob. A nil notify is
// allowed.
func (s *Streamer) Consolidate(ctx context.Context, parts []blob.Descriptor, dst blob.Descriptor, notify Notifier) (blob.Meta, error) {
	ctxLogger := mlog.GetMethodLogger(logger, "Streamer.Consolidate")

	if notify == nil {
		notify = discardNotifier{}
	}

	dig := digest.NewMD5()
	global := int64(0)

	for i, part := range parts {
		num := i + 1

		// Final local offset reached while draining this part, which
		// is the part's byte length once all blocks are copied.
		end := int64(0)

		nextBlock := int64(0)
		for {
			blocks, err := s.store.Blocks(ctx, part, nextBlock)
			if err != nil {
				err = errors.Wrapf(err, "failed to list blocks of part %d", num)
				ctxLogger.Error(err)
				return blob.Meta{}, err
			}
			if len(blocks) == 0 {
				break
			}

			for _, b := range blocks {
				if err := s.store.StartBlock(ctx, dst, global+b, global+b); err != nil {
					err = errors.Wrapf(err, "failed to start block %d", global+b)
					ctxLogger.Error(err)
					return blob.Meta{}, err
				}
				notify.Block(num, global+b)

				local := b
				for {
					chunks, err := s.store.Chunks(ctx, part, b, local)
					if err != nil {
						err = errors.Wrapf(err, "failed to list chunks of part %d block %d", num, b)
						ctxLogger.Error(err)
						return blob.Meta{}, err
					}
					if len(chunks) == 0 {
						break
					}

					for _, c := range chunks {
						notify.Chunk(num, c.Size)
						if err := s.writeFull(ctx, dst, global+b, global+c.Offset, c.Payload); err != nil {
							ctxLogger.Error(err)
							return blob.Meta{}, err
						}
						dig.Update(c.Payload)
						local = c.Offset + c.Size
					}
				}

				end = local
				nextBlock = b + 1
			}
		}

		global += end
	}

	meta := blob.Meta{Size: global, Checksum: dig.Sum()}
	if err := s.store.CommitMeta(ctx, dst, meta); err != nil {
		err = errors.Wrap(err, "failed to commit metadata")
		ctxLogger.Error(err)
		return blob.Meta{}, err
	}

	return meta, nil
}
