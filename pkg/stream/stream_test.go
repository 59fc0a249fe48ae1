package stream

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/gitter-badger/pithos/pkg/blob/memstore"
	"github.com/pkg/errors"
)

const emptyMD5 = "d41d8cd98f00b204e9800998ecf8427e"

func testDescriptor(key string) blob.Descriptor {
	return blob.Descriptor{Region: "test", Bucket: "bucket", Key: key}
}

func partDescriptor(key string, part int) blob.Descriptor {
	return blob.Descriptor{Region: "test", Bucket: "bucket", Key: key, Upload: "upload", Part: part}
}

func randomBytes(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	r.Read(b)
	return b
}

func hexMD5(p []byte) string {
	sum := md5.Sum(p)
	return hex.EncodeToString(sum[:])
}

func ingestAll(t *testing.T, s *Streamer, d blob.Descriptor, data []byte) blob.Meta {
	t.Helper()

	meta, err := s.Ingest(context.Background(), bytes.NewReader(data), d, false)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	return meta
}

func drainAll(t *testing.T, s *Streamer, d blob.Descriptor) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := s.Drain(context.Background(), d, &buf, false); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	return buf.Bytes()
}

// walkLayout walks the stored blocks and chunks through the paged
// listing calls, checking the contiguity invariant on the way.
func walkLayout(t *testing.T, store Store, d blob.Descriptor, maxChunk int64) (blocks []int64, total int64) {
	t.Helper()
	ctx := context.Background()

	nextBlock := int64(0)
	for {
		ids, err := store.Blocks(ctx, d, nextBlock)
		if err != nil {
			t.Fatalf("list blocks failed: %v", err)
		}
		if len(ids) == 0 {
			return blocks, total
		}

		for _, id := range ids {
			if len(blocks) > 0 && id <= blocks[len(blocks)-1] {
				t.Errorf("blocks not ascending: %d after %d", id, blocks[len(blocks)-1])
			}
			blocks = append(blocks, id)

			offset := id
			for {
				chunks, err := store.Chunks(ctx, d, id, offset)
				if err != nil {
					t.Fatalf("list chunks of block %d failed: %v", id, err)
				}
				if len(chunks) == 0 {
					break
				}

				for _, c := range chunks {
					if c.Offset != offset {
						t.Errorf("block %d: expected chunk at offset %d, got %d", id, offset, c.Offset)
					}
					if c.Size <= 0 || c.Size > maxChunk {
						t.Errorf("block %d: chunk size %d out of bounds", id, c.Size)
					}
					if int64(len(c.Payload)) != c.Size {
						t.Errorf("block %d: payload length %d does not match size %d", id, len(c.Payload), c.Size)
					}
					offset = c.Offset + c.Size
					total += c.Size
				}
			}
			nextBlock = id + 1
		}
	}
}

func TestIngestDrainRoundTrip(t *testing.T) {
	testCases := []struct {
		size int
	}{
		{0}, {1}, {15}, {16}, {17}, {63}, {64}, {65}, {160}, {1000},
	}

	for _, c := range testCases {
		store := memstore.New(64, 16)
		s := New(store)
		d := testDescriptor("roundtrip")
		data := randomBytes(c.size, int64(c.size)+1)

		meta := ingestAll(t, s, d, data)
		if meta.Size != int64(c.size) {
			t.Errorf("size %d: expected committed size %d, got %d", c.size, c.size, meta.Size)
		}

		if got := drainAll(t, s, d); bytes.Equal(got, data) == false {
			t.Errorf("size %d: drained bytes differ from ingested bytes", c.size)
		}
	}
}

func TestIngestChecksum(t *testing.T) {
	store := memstore.New(64, 16)
	s := New(store)
	d := testDescriptor("checksum")
	data := randomBytes(1000, 7)

	meta := ingestAll(t, s, d, data)
	if expected := hexMD5(data); meta.Checksum != expected {
		t.Errorf("expected checksum %s, got %s", expected, meta.Checksum)
	}

	committed, err := store.Meta(context.Background(), d)
	if err != nil {
		t.Fatalf("meta failed: %v", err)
	}
	if committed != meta {
		t.Errorf("expected committed meta %+v, got %+v", meta, committed)
	}
}

func TestIngestEmptySource(t *testing.T) {
	store := memstore.New(64, 16)
	s := New(store)
	d := testDescriptor("empty")

	meta := ingestAll(t, s, d, nil)
	if meta.Size != 0 {
		t.Errorf("expected size 0, got %d", meta.Size)
	}
	if meta.Checksum != emptyMD5 {
		t.Errorf("expected checksum %s, got %s", emptyMD5, meta.Checksum)
	}

	// Both columns must be committed even for an empty stream.
	committed, err := store.Meta(context.Background(), d)
	if err != nil {
		t.Fatalf("meta failed: %v", err)
	}
	if committed != meta {
		t.Errorf("expected committed meta %+v, got %+v", meta, committed)
	}
}

func TestChunkContiguity(t *testing.T) {
	store := memstore.New(64, 16)
	s := New(store)
	d := testDescriptor("contiguity")
	data := randomBytes(1000, 3)

	meta := ingestAll(t, s, d, data)

	_, total := walkLayout(t, store, d, 16)
	if total != meta.Size {
		t.Errorf("expected chunks to cover %d bytes, got %d", meta.Size, total)
	}
}

func TestPagedListing(t *testing.T) {
	store := memstore.New(64, 16, memstore.WithPageSize(1))
	s := New(store)
	d := testDescriptor("paged")
	data := randomBytes(200, 11)

	ingestAll(t, s, d, data)
	if got := drainAll(t, s, d); bytes.Equal(got, data) == false {
		t.Error("drained bytes differ from ingested bytes with page size 1")
	}
}

func TestDuplicatePreservesIdentity(t *testing.T) {
	store := memstore.New(64, 16)
	s := New(store)
	src := testDescriptor("copy-src")
	dst := testDescriptor("copy-dst")
	data := randomBytes(500, 5)

	srcMeta := ingestAll(t, s, src, data)

	dstMeta, err := s.Duplicate(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("duplicate failed: %v", err)
	}
	if dstMeta != srcMeta {
		t.Errorf("expected destination meta %+v, got %+v", srcMeta, dstMeta)
	}

	committed, err := store.Meta(context.Background(), dst)
	if err != nil {
		t.Fatalf("meta failed: %v", err)
	}
	if committed != srcMeta {
		t.Errorf("expected committed meta %+v, got %+v", srcMeta, committed)
	}

	if bytes.Equal(drainAll(t, s, dst), drainAll(t, s, src)) == false {
		t.Error("destination bytes differ from source bytes")
	}

	srcBlocks, _ := walkLayout(t, store, src, 16)
	dstBlocks, _ := walkLayout(t, store, dst, 16)
	if len(srcBlocks) != len(dstBlocks) {
		t.Fatalf("expected %d blocks, got %d", len(srcBlocks), len(dstBlocks))
	}
	for i := range srcBlocks {
		if srcBlocks[i] != dstBlocks[i] {
			t.Errorf("block %d: expected id %d, got %d", i, srcBlocks[i], dstBlocks[i])
		}
	}
}

func TestConsolidateTwoParts(t *testing.T) {
	store := memstore.New(4, 2)
	s := New(store)

	data1 := []byte("hello")
	data2 := []byte("worlds!")

	p1 := partDescriptor("two-parts", 1)
	p2 := partDescriptor("two-parts", 2)
	ingestAll(t, s, p1, data1)
	ingestAll(t, s, p2, data2)

	dst := testDescriptor("two-parts")
	meta, err := s.Consolidate(context.Background(), []blob.Descriptor{p1, p2}, dst, nil)
	if err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}

	if meta.Size != 12 {
		t.Errorf("expected size 12, got %d", meta.Size)
	}

	concat := append(append([]byte(nil), data1...), data2...)
	if expected := hexMD5(concat); meta.Checksum != expected {
		t.Errorf("expected checksum %s, got %s", expected, meta.Checksum)
	}

	if got := drainAll(t, s, dst); bytes.Equal(got, concat) == false {
		t.Errorf("expected drained bytes %q, got %q", concat, got)
	}

	// The second part's blocks are shifted by the first part's length.
	blocks, _ := walkLayout(t, store, dst, 2)
	expected := []int64{0, 4, 5, 9}
	if len(blocks) != len(expected) {
		t.Fatalf("expected blocks %v, got %v", expected, blocks)
	}
	for i := range expected {
		if blocks[i] != expected[i] {
			t.Errorf("expected blocks %v, got %v", expected, blocks)
			break
		}
	}
}

func TestConsolidateAdditivity(t *testing.T) {
	store := memstore.New(64, 7)
	s := New(store)

	sizes := []int{100, 50, 200}
	var parts []blob.Descriptor
	var concat []byte
	for i, n := range sizes {
		data := randomBytes(n, int64(20+i))
		p := partDescriptor("additivity", i+1)
		ingestAll(t, s, p, data)
		parts = append(parts, p)
		concat = append(concat, data...)
	}

	notify := &countingNotifier{parts: make(map[int]bool)}
	dst := testDescriptor("additivity")
	meta, err := s.Consolidate(context.Background(), parts, dst, notify)
	if err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}

	if expected := int64(len(concat)); meta.Size != expected {
		t.Errorf("expected size %d, got %d", expected, meta.Size)
	}
	if expected := hexMD5(concat); meta.Checksum != expected {
		t.Errorf("expected checksum %s, got %s", expected, meta.Checksum)
	}
	if got := drainAll(t, s, dst); bytes.Equal(got, concat) == false {
		t.Error("drained bytes differ from concatenated parts")
	}

	if notify.blocks == 0 {
		t.Error("expected block notifications")
	}
	if notify.bytes != meta.Size {
		t.Errorf("expected %d notified bytes, got %d", meta.Size, notify.bytes)
	}
	for i := range sizes {
		if notify.parts[i+1] == false {
			t.Errorf("expected notifications for part %d", i+1)
		}
	}
}

func TestConsolidateZeroParts(t *testing.T) {
	store := memstore.New(64, 16)
	s := New(store)
	dst := testDescriptor("zero-parts")

	meta, err := s.Consolidate(context.Background(), nil, dst, nil)
	if err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}

	if meta.Size != 0 {
		t.Errorf("expected size 0, got %d", meta.Size)
	}
	if meta.Checksum != emptyMD5 {
		t.Errorf("expected checksum %s, got %s", emptyMD5, meta.Checksum)
	}
	if got := drainAll(t, s, dst); len(got) != 0 {
		t.Errorf("expected empty destination, got %d bytes", len(got))
	}
}

// A part whose final write lands exactly on a block boundary leaves an
// empty trailing block whose id equals the part length. The next
// part's first block then reopens that id.
func TestConsolidateBoundaryAlignedParts(t *testing.T) {
	store := memstore.New(4, 2)
	s := New(store)

	p1 := partDescriptor("aligned", 1)
	p2 := partDescriptor("aligned", 2)
	ingestAll(t, s, p1, []byte("abcd"))
	ingestAll(t, s, p2, []byte("efgh"))

	dst := testDescriptor("aligned")
	meta, err := s.Consolidate(context.Background(), []blob.Descriptor{p1, p2}, dst, nil)
	if err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}

	if meta.Size != 8 {
		t.Errorf("expected size 8, got %d", meta.Size)
	}
	if got := drainAll(t, s, dst); bytes.Equal(got, []byte("abcdefgh")) == false {
		t.Errorf("expected drained bytes %q, got %q", "abcdefgh", got)
	}
}

func TestPartialAcceptResilience(t *testing.T) {
	store := memstore.New(64, 16, memstore.WithAcceptLimit(5))
	s := New(store)
	d := testDescriptor("partial")
	data := randomBytes(333, 13)

	meta := ingestAll(t, s, d, data)
	if expected := hexMD5(data); meta.Checksum != expected {
		t.Errorf("expected checksum %s, got %s", expected, meta.Checksum)
	}
	if got := drainAll(t, s, d); bytes.Equal(got, data) == false {
		t.Error("drained bytes differ from ingested bytes")
	}

	// The store never stored more than it accepted per write.
	_, total := walkLayout(t, store, d, 5)
	if total != int64(len(data)) {
		t.Errorf("expected chunks to cover %d bytes, got %d", len(data), total)
	}
}

func TestTenMiBLayout(t *testing.T) {
	const mib = 1 << 20

	store := memstore.New(4*mib, mib)
	s := New(store)
	d := testDescriptor("ten-mib")
	data := randomBytes(10*mib, 99)

	meta := ingestAll(t, s, d, data)
	if meta.Size != 10485760 {
		t.Errorf("expected size 10485760, got %d", meta.Size)
	}

	blocks, total := walkLayout(t, store, d, mib)
	expected := []int64{0, 4194304, 8388608}
	if len(blocks) != len(expected) {
		t.Fatalf("expected blocks %v, got %v", expected, blocks)
	}
	for i := range expected {
		if blocks[i] != expected[i] {
			t.Errorf("expected blocks %v, got %v", expected, blocks)
			break
		}
	}
	if total != meta.Size {
		t.Errorf("expected chunks to cover %d bytes, got %d", meta.Size, total)
	}

	if got := drainAll(t, s, d); bytes.Equal(got, data) == false {
		t.Error("drained bytes differ from ingested bytes")
	}
}

func TestIngestFaultSkipsCommit(t *testing.T) {
	store := memstore.New(64, 16)
	s := New(store)
	d := testDescriptor("fault")

	src := &errReader{data: randomBytes(10, 1), err: errors.New("source fault")}
	if _, err := s.Ingest(context.Background(), src, d, false); err == nil {
		t.Fatal("expected ingest to fail")
	}

	// The partial blob stays uncommitted.
	if _, err := store.Meta(context.Background(), d); err != blob.ErrIncomplete {
		t.Errorf("expected %v, got %v", blob.ErrIncomplete, err)
	}
}

func TestDrainFaultReleasesSink(t *testing.T) {
	store := memstore.New(64, 16)
	s := New(store)
	d := testDescriptor("sink-fault")
	ingestAll(t, s, d, randomBytes(100, 2))

	sink := &faultySink{limit: 10}
	if err := s.Drain(context.Background(), d, sink, true); err == nil {
		t.Fatal("expected drain to fail")
	}
	if sink.flushed == false {
		t.Error("expected sink to be flushed after fault")
	}
	if sink.closed == false {
		t.Error("expected sink to be closed after fault")
	}

	kept := &faultySink{limit: 1 << 20}
	if err := s.Drain(context.Background(), d, kept, false); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if kept.closed {
		t.Error("expected sink to stay open when closing is not requested")
	}
}

func TestIngestReleasesSource(t *testing.T) {
	store := memstore.New(64, 16)
	s := New(store)

	src := &closableReader{Reader: bytes.NewReader(randomBytes(50, 4))}
	if _, err := s.Ingest(context.Background(), src, testDescriptor("close-src"), true); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if src.closed == false {
		t.Error("expected source to be closed")
	}

	kept := &closableReader{Reader: bytes.NewReader(randomBytes(50, 4))}
	if _, err := s.Ingest(context.Background(), kept, testDescriptor("keep-src"), false); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if kept.closed {
		t.Error("expected source to stay open when closing is not requested")
	}
}

type countingNotifier struct {
	parts  map[int]bool
	blocks int
	bytes  int64
}

func (n *countingNotifier) Block(part int, blockID int64) {
	n.parts[part] = true
	n.blocks++
}

func (n *countingNotifier) Chunk(part int, size int64) {
	n.parts[part] = true
	n.bytes += size
}

type errReader struct {
	data []byte
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

type faultySink struct {
	limit   int
	wrote   int
	flushed bool
	closed  bool
}

func (w *faultySink) Write(p []byte) (int, error) {
	if w.wrote+len(p) > w.limit {
		return 0, errors.New("sink fault")
	}
	w.wrote += len(p)
	return len(p), nil
}

func (w *faultySink) Flush() {
	w.flushed = true
}

func (w *faultySink) Close() error {
	w.closed = true
	return nil
}

type closableReader struct {
	*bytes.Reader
	closed bool
}

func (r *closableReader) Close() error {
	r.closed = true
	return nil
}
