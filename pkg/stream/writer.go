package stream

import (
	"context"
	"io"

	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/gitter-badger/pithos/pkg/digest"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
)

// Ingest reads the source stream to its end and persists it as blocks
// and chunks under the descriptor, folding every stored byte into a
// running md5. On success the final size and checksum are committed
// as one metadata update and returned.
//
// A fault skips the commit: the partial blob stays without metadata,
// which readers treat as incomplete. When closeSrc is set the source
// is closed on every exit path.
func (s *Streamer) Ingest(ctx context.Context, src io.Reader, d blob.Descriptor, closeSrc bool) (blob.Meta, error) {
	ctxLogger := mlog.GetMethodLogger(logger, "Streamer.Ingest")

	if closeSrc {
		defer releaseSource(src)
	}

	if err := s.store.StartBlock(ctx, d, 0, 0); err != nil {
		err = errors.Wrap(err, "failed to start first block")
		ctxLogger.Error(err)
		return blob.Meta{}, err
	}

	var (
		dig     = digest.NewMD5()
		block   int64
		offset  int64
		buf     []byte
		pending []byte
		srcErr  error
	)

	for {
		// The write ceiling can vary over time, ask every pass.
		max, err := s.store.MaxChunkSize(ctx, d)
		if err != nil {
			err = errors.Wrap(err, "failed to get max chunk size")
			ctxLogger.Error(err)
			return blob.Meta{}, err
		}
		if max <= 0 {
			err = errors.Errorf("store advertised non-positive max chunk size %d", max)
			ctxLogger.Error(err)
			return blob.Meta{}, err
		}

		if len(pending) == 0 {
			// Raise a read error only after its bytes are stored.
			if srcErr == io.EOF {
				break
			}
			if srcErr != nil {
				err = errors.Wrap(srcErr, "failed to read source")
				ctxLogger.Error(err)
				return blob.Meta{}, err
			}

			if int64(len(buf)) < max {
				buf = make([]byte, max)
			}
			var n int
			n, srcErr = src.Read(buf[:max])
			if n > 0 {
				pending = buf[:n]
			}
			continue
		}

		offer := pending
		if int64(len(offer)) > max {
			offer = offer[:max]
		}

		accepted, err := s.store.WriteChunk(ctx, d, block, offset, offer)
		if err != nil {
			err = errors.Wrapf(err, "failed to write chunk at block %d offset %d", block, offset)
			ctxLogger.Error(err)
			return blob.Meta{}, err
		}
		if accepted <= 0 || accepted > int64(len(offer)) {
			err = errors.Errorf("store accepted %d of %d offered bytes", accepted, len(offer))
			ctxLogger.Error(err)
			return blob.Meta{}, err
		}

		// Only accepted bytes advance the state; the rest of pending
		// is offered again on the next pass.
		dig.Update(offer[:accepted])
		offset += accepted
		pending = pending[accepted:]

		if s.store.IsBoundary(block, offset) {
			block = offset
			if err := s.store.StartBlock(ctx, d, block, offset); err != nil {
				err = errors.Wrapf(err, "failed to start block %d", block)
				ctxLogger.Error(err)
				return blob.Meta{}, err
			}
		}
	}

	meta := blob.Meta{Size: offset, Checksum: dig.Sum()}
	if err := s.store.CommitMeta(ctx, d, meta); err != nil {
		err = errors.Wrap(err, "failed to commit metadata")
		ctxLogger.Error(err)
		return blob.Meta{}, err
	}

	return meta, nil
}
