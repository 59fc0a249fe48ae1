// Package mysqlstore implements the blob store interface on top of a
// mysql database. Blocks, chunks and metadata live in three tables
// keyed by a digest of the blob descriptor, and listings page with
// ordered range queries so that blobs of any size stream in bounded
// memory.
package mysqlstore

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/gitter-badger/pithos/pkg/util/config"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "github.com/go-sql-driver/mysql"
)

var logger *logrus.Entry

const (
	maxPool = 8

	// Listing page sizes. Chunk pages are small because each row
	// carries a payload.
	blockPageSize = 128
	chunkPageSize = 8
)

// Store is a mysql blob store.
type Store struct {
	cfg *config.Gw
	db  *sql.DB

	blockSize int64
	chunkSize int64
}

// New creates a Store object with the opened db.
func New(cfg *config.Gw) (*Store, error) {
	logger = mlog.GetPackageLogger("pkg/blob/mysqlstore")

	blockSize, err := strconv.ParseInt(cfg.BlockSize, 10, 64)
	if err != nil || blockSize <= 0 {
		return nil, errors.Errorf("invalid block size: %q", cfg.BlockSize)
	}
	chunkSize, err := strconv.ParseInt(cfg.ChunkSize, 10, 64)
	if err != nil || chunkSize <= 0 {
		return nil, errors.Errorf("invalid chunk size: %q", cfg.ChunkSize)
	}

	db, err := sql.Open(
		"mysql",
		fmt.Sprintf("%s:%s@tcp(%s:%s)/%s",
			cfg.MySQLUser,
			cfg.MySQLPassword,
			cfg.MySQLHost,
			cfg.MySQLPort,
			cfg.MySQLDatabase,
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open mysql")
	}
	db.SetMaxOpenConns(maxPool)

	s := &Store{
		cfg:       cfg,
		db:        db,
		blockSize: blockSize,
		chunkSize: chunkSize,
	}
	if err = s.init(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to generate base tables")
	}

	return s, nil
}

func (s *Store) init() error {
	// Generates base tables.
	for _, q := range generateSQLBase {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the mysql database.
func (s *Store) Close() {
	s.db.Close()
}

// bid derives the row key of a descriptor.
func bid(d blob.Descriptor) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s/%s/%s/%s/%d", d.Region, d.Bucket, d.Key, d.Upload, d.Part)))
	return hex.EncodeToString(sum[:])
}

// Blocks returns the next run of block ids at or after from, ascending.
func (s *Store) Blocks(ctx context.Context, d blob.Descriptor, from int64) ([]int64, error) {
	q := `
		SELECT bb_id
		FROM blob_block
		WHERE bb_blob = ? AND bb_id >= ?
		ORDER BY bb_id
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, q, bid(d), from, blockPageSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list blocks")
	}
	defer rows.Close()

	ids := make([]int64, 0, blockPageSize)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan block id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list blocks")
	}

	// Block ids are non-negative, so an empty first page means the
	// blob has no blocks at all. It may still exist with committed
	// metadata only.
	if len(ids) == 0 && from <= 0 {
		if exists, err := s.exists(ctx, d); err != nil {
			return nil, err
		} else if exists == false {
			return nil, blob.ErrNotFound
		}
	}

	return ids, nil
}

// Chunks returns the next run of chunks at or after the offset from
// within the given block.
func (s *Store) Chunks(ctx context.Context, d blob.Descriptor, blockID, from int64) ([]blob.Chunk, error) {
	q := `
		SELECT bc_offset, bc_size, bc_payload
		FROM blob_chunk
		WHERE bc_blob = ? AND bc_block = ? AND bc_offset >= ?
		ORDER BY bc_offset
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, q, bid(d), blockID, from, chunkPageSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chunks")
	}
	defer rows.Close()

	chunks := make([]blob.Chunk, 0, chunkPageSize)
	for rows.Next() {
		var c blob.Chunk
		if err := rows.Scan(&c.Offset, &c.Size, &c.Payload); err != nil {
			return nil, errors.Wrap(err, "failed to scan chunk")
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list chunks")
	}

	return chunks, nil
}

// StartBlock opens a block for writing at the given offset.
// Opening an already open block is a no-op.
func (s *Store) StartBlock(ctx context.Context, d blob.Descriptor, blockID, offset int64) error {
	q := `
		INSERT INTO blob_block (bb_blob, bb_id, bb_offset)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE bb_offset = bb_offset
	`
	if _, err := s.db.ExecContext(ctx, q, bid(d), blockID, offset); err != nil {
		return errors.Wrapf(err, "failed to start block %d", blockID)
	}
	return nil
}

// WriteChunk persists payload bytes at (blockID, offset) and returns
// how many bytes were accepted, at most the chunk size ceiling.
func (s *Store) WriteChunk(ctx context.Context, d blob.Descriptor, blockID, offset int64, payload []byte) (int64, error) {
	accepted := int64(len(payload))
	if accepted > s.chunkSize {
		accepted = s.chunkSize
	}

	q := `
		INSERT INTO blob_chunk (bc_blob, bc_block, bc_offset, bc_size, bc_payload)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE bc_size = VALUES(bc_size), bc_payload = VALUES(bc_payload)
	`
	if _, err := s.db.ExecContext(ctx, q, bid(d), blockID, offset, accepted, payload[:accepted]); err != nil {
		return 0, errors.Wrapf(err, "failed to write chunk at block %d offset %d", blockID, offset)
	}
	return accepted, nil
}

// MaxChunkSize returns the current write ceiling for the descriptor.
func (s *Store) MaxChunkSize(ctx context.Context, d blob.Descriptor) (int64, error) {
	return s.chunkSize, nil
}

// IsBoundary reports whether a block that started at blockID is full
// once the running offset has reached offset.
func (s *Store) IsBoundary(blockID, offset int64) bool {
	return offset-blockID >= s.blockSize
}

// Meta returns the committed metadata of the descriptor.
func (s *Store) Meta(ctx context.Context, d blob.Descriptor) (blob.Meta, error) {
	q := `
		SELECT bm_size, bm_checksum
		FROM blob_meta
		WHERE bm_blob = ?
	`
	var m blob.Meta
	err := s.db.QueryRowContext(ctx, q, bid(d)).Scan(&m.Size, &m.Checksum)
	if err == sql.ErrNoRows {
		if exists, err := s.exists(ctx, d); err != nil {
			return blob.Meta{}, err
		} else if exists {
			return blob.Meta{}, blob.ErrIncomplete
		}
		return blob.Meta{}, blob.ErrNotFound
	}
	if err != nil {
		return blob.Meta{}, errors.Wrap(err, "failed to query meta")
	}

	return m, nil
}

// CommitMeta commits size and checksum as one atomic update.
func (s *Store) CommitMeta(ctx context.Context, d blob.Descriptor, m blob.Meta) error {
	q := `
		INSERT INTO blob_meta (bm_blob, bm_size, bm_checksum)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE bm_size = VALUES(bm_size), bm_checksum = VALUES(bm_checksum)
	`
	if _, err := s.db.ExecContext(ctx, q, bid(d), m.Size, m.Checksum); err != nil {
		return errors.Wrap(err, "failed to commit meta")
	}
	return nil
}

// Delete removes all blocks, chunks and metadata of the descriptor.
func (s *Store) Delete(ctx context.Context, d blob.Descriptor) error {
	key := bid(d)
	for _, q := range []string{
		`DELETE FROM blob_chunk WHERE bc_blob = ?`,
		`DELETE FROM blob_block WHERE bb_blob = ?`,
		`DELETE FROM blob_meta WHERE bm_blob = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, q, key); err != nil {
			return errors.Wrap(err, "failed to delete blob")
		}
	}
	return nil
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// exists reports whether any row at all belongs to the descriptor.
func (s *Store) exists(ctx context.Context, d blob.Descriptor) (bool, error) {
	q := `
		SELECT EXISTS (SELECT 1 FROM blob_block WHERE bb_blob = ?)
		    OR EXISTS (SELECT 1 FROM blob_meta WHERE bm_blob = ?)
	`
	key := bid(d)

	var found bool
	if err := s.db.QueryRowContext(ctx, q, key, key).Scan(&found); err != nil {
		return false, errors.Wrap(err, "failed to probe blob")
	}
	return found, nil
}
