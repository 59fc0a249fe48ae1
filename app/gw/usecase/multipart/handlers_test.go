package multipart

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository"
	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository/inmem"
	"github.com/gitter-badger/pithos/app/gw/usecase/auth"
	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/gitter-badger/pithos/pkg/blob/memstore"
	"github.com/gitter-badger/pithos/pkg/client/request"
	"github.com/gitter-badger/pithos/pkg/s3"
	"github.com/gitter-badger/pithos/pkg/stream"
	"github.com/gitter-badger/pithos/pkg/util/config"
	"github.com/gitter-badger/pithos/pkg/util/metrics"
)

const (
	testAccess = "2Q3ZWMHCG1085YZVE9A7"
	testSecret = "ZC14XL0g9PKFMMDWL2A5"
	testRegion = "test-region1"
)

type fakeAuthRepository struct {
	secrets map[string]string
}

func (f *fakeAuthRepository) FindSecretKey(accessKey string) (string, error) {
	sk, ok := f.secrets[accessKey]
	if ok == false {
		return "", repository.ErrNotExist
	}
	return sk, nil
}

// completedObject is one catalog row written by a completed upload.
type completedObject struct {
	bucket string
	key    string
	size   int64
	etag   string
}

// fakeRepository keeps the upload catalog in memory, mapping
// constraint violations to the repository error values.
type fakeRepository struct {
	buckets   map[string]bool
	uploads   map[string]*Upload
	parts     map[string]map[int]Part
	completed []completedObject
}

func newFakeRepository(buckets ...string) *fakeRepository {
	f := &fakeRepository{
		buckets: map[string]bool{},
		uploads: map[string]*Upload{},
		parts:   map[string]map[int]Part{},
	}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeRepository) BucketExists(bucketName string) (bool, error) {
	return f.buckets[bucketName], nil
}

func (f *fakeRepository) AddUpload(uploadID, bucketName, objectKey, accessKey string) error {
	if f.buckets[bucketName] == false {
		return repository.ErrNotExist
	}
	f.uploads[uploadID] = &Upload{
		ID:      uploadID,
		Bucket:  bucketName,
		Key:     objectKey,
		Created: time.Now(),
	}
	f.parts[uploadID] = map[int]Part{}
	return nil
}

func (f *fakeRepository) FindUpload(uploadID string) (*Upload, error) {
	up, ok := f.uploads[uploadID]
	if ok == false {
		return nil, repository.ErrNotExist
	}
	return up, nil
}

func (f *fakeRepository) AddPart(uploadID string, number int, size int64, etag string) error {
	if _, ok := f.uploads[uploadID]; ok == false {
		return repository.ErrNotExist
	}
	f.parts[uploadID][number] = Part{
		Number:   number,
		Size:     size,
		ETag:     etag,
		Modified: time.Now(),
	}
	return nil
}

func (f *fakeRepository) ListParts(uploadID string, from, limit int) ([]Part, error) {
	numbers := []int{}
	for n := range f.parts[uploadID] {
		if n >= from {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)

	page := []Part{}
	for _, n := range numbers {
		page = append(page, f.parts[uploadID][n])
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *fakeRepository) CompleteUpload(uploadID string, size int64, etag string) error {
	up, ok := f.uploads[uploadID]
	if ok == false {
		return repository.ErrNotExist
	}

	f.completed = append(f.completed, completedObject{
		bucket: up.Bucket,
		key:    up.Key,
		size:   size,
		etag:   etag,
	})
	delete(f.uploads, uploadID)
	delete(f.parts, uploadID)
	return nil
}

func (f *fakeRepository) AbortUpload(uploadID string) error {
	if _, ok := f.uploads[uploadID]; ok == false {
		return repository.ErrNotExist
	}
	delete(f.uploads, uploadID)
	delete(f.parts, uploadID)
	return nil
}

// newTestHandlers wires the handlers against an in memory blob store
// with small blocks so short parts still span several of them.
func newTestHandlers() (Handlers, *fakeRepository, *memstore.Store) {
	cfg := &config.Gw{Region: testRegion}
	bs := memstore.New(128, 32)
	store := newFakeRepository("docs")
	authHandlers := auth.NewHandlers(
		&fakeAuthRepository{secrets: map[string]string{testAccess: testSecret}},
		inmem.NewCredRepository(),
	)
	h := NewHandlers(cfg, request.NewRequestEventFactory(), authHandlers,
		store, bs, stream.New(bs), metrics.New())
	return h, store, bs
}

// signV4 signs the request the way an s3 client application would.
func signV4(r *http.Request, access, secret, region string) {
	now := time.Now().UTC()
	r.Header.Set("X-Amz-Date", now.Format("20060102T150405Z"))
	r.Header.Set("X-Amz-Content-Sha256", s3.UnsignedPayload)

	signedHeaders := []string{"host", "x-amz-date"}
	credV4 := s3.CredV4{
		AccessKey:   access,
		Date:        now.Format("20060102"),
		Region:      region,
		Service:     "s3",
		Termination: "aws4_request",
	}

	canonicalRequest := s3.GenCanonicalRequest(
		r.Method,
		r.URL.EscapedPath(),
		s3.GenCanonicalQuery(r.URL.Query()),
		s3.GenCanonicalHeaders(r, signedHeaders),
		s3.GenSignedHeadersString(signedHeaders),
		s3.UnsignedPayload,
	)

	hashed := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := s3.GenStringToSign(
		"AWS4-HMAC-SHA256",
		r.Header.Get("X-Amz-Date"),
		credV4.Scope(),
		hex.EncodeToString(hashed[:]),
	)
	signature := s3.GenSignature(
		s3.GenSignatureKey(secret, credV4.Date, credV4.Region, credV4.Service),
		stringToSign,
	)

	r.Header.Set("Authorization", "AWS4-HMAC-SHA256 "+
		"Credential="+access+"/"+credV4.Scope()+","+
		"SignedHeaders="+s3.GenSignedHeadersString(signedHeaders)+","+
		"Signature="+signature)
}

func do(h http.HandlerFunc, method, target string, body []byte, hdr map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	signV4(req, testAccess, testSecret, testRegion)

	resp := httptest.NewRecorder()
	h(resp, req)
	return resp
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

// initiate starts an upload for /docs/video and returns its id.
func initiate(t *testing.T, h Handlers) string {
	t.Helper()

	resp := do(h.InitiateUploadHandler, "POST", "/docs/video?uploads", nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("initiate upload: got status %d, expected %d", resp.Code, http.StatusOK)
	}

	result := s3.InitiateMultipartUploadResult{}
	if err := xml.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode the initiate result: %v", err)
	}
	if result.Bucket != "docs" || result.Key != "video" || result.UploadId == "" {
		t.Fatalf("initiate result %+v, expected docs/video with an upload id", result)
	}
	return result.UploadId
}

// putPart uploads one part and returns its etag.
func putPart(t *testing.T, h Handlers, uploadID string, number int, payload []byte) string {
	t.Helper()

	target := "/docs/video?partNumber=" + strconv.Itoa(number) + "&uploadId=" + uploadID
	resp := do(h.PutPartHandler, "PUT", target, payload, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("put part %d: got status %d, expected %d", number, resp.Code, http.StatusOK)
	}

	want := hexMD5(payload)
	if got := resp.Header().Get("ETag"); got != want {
		t.Fatalf("part %d etag %q, expected %q", number, got, want)
	}
	return want
}

// manifestBody encodes a part manifest the way a client sends it.
func manifestBody(t *testing.T, parts ...s3.CompletePart) []byte {
	t.Helper()

	body, err := xml.Marshal(s3.CompleteMultipartUpload{Part: parts})
	if err != nil {
		t.Fatalf("failed to encode the manifest: %v", err)
	}
	return body
}

func TestMultipartLifecycle(t *testing.T) {
	h, store, bs := newTestHandlers()

	uploadID := initiate(t, h)

	first := randomBytes(200, 1)
	second := randomBytes(100, 2)
	leftover := randomBytes(50, 3)

	etag1 := putPart(t, h, uploadID, 1, first)
	etag2 := putPart(t, h, uploadID, 2, second)
	putPart(t, h, uploadID, 3, leftover)

	// 1. All three recorded parts show up in the listing.
	resp := do(h.ListPartsHandler, "GET", "/docs/video?uploadId="+uploadID, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list parts: got status %d, expected %d", resp.Code, http.StatusOK)
	}
	listing := s3.ListPartsResult{}
	if err := xml.Unmarshal(resp.Body.Bytes(), &listing); err != nil {
		t.Fatalf("failed to decode the parts listing: %v", err)
	}
	if len(listing.Part) != 3 {
		t.Fatalf("listed %d parts, expected 3", len(listing.Part))
	}
	for i, want := range []struct {
		number int
		size   int64
		etag   string
	}{
		{1, 200, etag1}, {2, 100, etag2}, {3, 50, hexMD5(leftover)},
	} {
		p := listing.Part[i]
		if p.PartNumber != want.number || p.Size != want.size || p.ETag != want.etag {
			t.Errorf("part entry %d is %+v, expected %+v", i, p, want)
		}
	}

	// 2. The manifest references parts one and two; part three is
	// legal to leave out and must be dropped.
	whole := append(append([]byte{}, first...), second...)
	body := manifestBody(t,
		s3.CompletePart{PartNumber: 1, ETag: etag1},
		s3.CompletePart{PartNumber: 2, ETag: etag2},
	)
	resp = do(h.CompleteUploadHandler, "POST", "/docs/video?uploadId="+uploadID, body, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("complete upload: got status %d, expected %d", resp.Code, http.StatusOK)
	}

	result := s3.CompleteMultipartUploadResult{}
	if err := xml.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode the complete result: %v", err)
	}
	if result.ETag != hexMD5(whole) {
		t.Errorf("complete etag %q, expected %q", result.ETag, hexMD5(whole))
	}
	if result.Location != "/docs/video" || result.Bucket != "docs" || result.Key != "video" {
		t.Errorf("complete result %+v, expected /docs/video coordinates", result)
	}

	// 3. The catalog swapped the upload for the object row.
	if len(store.completed) != 1 {
		t.Fatalf("completed %d objects, expected 1", len(store.completed))
	}
	if c := store.completed[0]; c.bucket != "docs" || c.key != "video" ||
		c.size != 300 || c.etag != hexMD5(whole) {
		t.Errorf("completed row %+v, expected docs/video with 300 bytes", c)
	}
	if _, err := store.FindUpload(uploadID); err != repository.ErrNotExist {
		t.Error("upload row is still stored after the completion")
	}

	// 4. The assembled blob drains back as the concatenation and the
	// part payloads are gone, the left out one included.
	ctx := context.Background()
	var buf bytes.Buffer
	dst := blob.Descriptor{Region: testRegion, Bucket: "docs", Key: "video"}
	if err := stream.New(bs).Drain(ctx, dst, &buf, false); err != nil {
		t.Fatalf("failed to drain the assembled object: %v", err)
	}
	if bytes.Equal(buf.Bytes(), whole) == false {
		t.Error("assembled body does not match the part concatenation")
	}
	for number := 1; number <= 3; number++ {
		d := blob.Descriptor{Region: testRegion, Bucket: "docs", Key: "video", Upload: uploadID, Part: number}
		if _, err := bs.Meta(ctx, d); err == nil {
			t.Errorf("part %d payload is still stored after the completion", number)
		}
	}

	// 5. The upload id no longer resolves.
	resp = do(h.ListPartsHandler, "GET", "/docs/video?uploadId="+uploadID, nil, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("list after complete: got status %d, expected %d", resp.Code, http.StatusNotFound)
	}
}

func TestPutPartReplace(t *testing.T) {
	h, _, _ := newTestHandlers()

	uploadID := initiate(t, h)

	putPart(t, h, uploadID, 1, randomBytes(200, 4))
	replacement := randomBytes(80, 5)
	putPart(t, h, uploadID, 1, replacement)

	resp := do(h.ListPartsHandler, "GET", "/docs/video?uploadId="+uploadID, nil, nil)
	listing := s3.ListPartsResult{}
	if err := xml.Unmarshal(resp.Body.Bytes(), &listing); err != nil {
		t.Fatalf("failed to decode the parts listing: %v", err)
	}
	if len(listing.Part) != 1 {
		t.Fatalf("listed %d parts, expected the replaced one only", len(listing.Part))
	}
	if p := listing.Part[0]; p.Size != 80 || p.ETag != hexMD5(replacement) {
		t.Errorf("part entry %+v, expected the replacement payload", p)
	}
}

func TestPutPartErrors(t *testing.T) {
	h, store, bs := newTestHandlers()

	uploadID := initiate(t, h)
	payload := randomBytes(40, 6)

	testCases := []struct {
		target     string
		wantStatus int
	}{
		// Part numbers are bounded on both ends.
		{"/docs/video?partNumber=nan&uploadId=" + uploadID, http.StatusBadRequest},
		{"/docs/video?partNumber=0&uploadId=" + uploadID, http.StatusBadRequest},
		{"/docs/video?partNumber=10001&uploadId=" + uploadID, http.StatusBadRequest},
		{"/docs/video?partNumber=1&uploadId=nosuch", http.StatusNotFound},
		// The upload id belongs to another key.
		{"/docs/other?partNumber=1&uploadId=" + uploadID, http.StatusNotFound},
	}

	for _, c := range testCases {
		resp := do(h.PutPartHandler, "PUT", c.target, payload, nil)
		if resp.Code != c.wantStatus {
			t.Errorf("put part %s: got status %d, expected %d", c.target, resp.Code, c.wantStatus)
		}
	}

	// A digest mismatch discards the part payload and its row.
	wrong := md5.Sum([]byte("something else"))
	resp := do(h.PutPartHandler, "PUT", "/docs/video?partNumber=1&uploadId="+uploadID, payload, map[string]string{
		"Content-MD5": base64.StdEncoding.EncodeToString(wrong[:]),
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("put part with wrong digest: got status %d, expected %d", resp.Code, http.StatusBadRequest)
	}
	if len(store.parts[uploadID]) != 0 {
		t.Error("a rejected part must not leave a catalog row")
	}
	d := blob.Descriptor{Region: testRegion, Bucket: "docs", Key: "video", Upload: uploadID, Part: 1}
	if _, err := bs.Meta(context.Background(), d); err == nil {
		t.Error("a rejected part must not leave a committed blob")
	}
}

func TestInitiateUploadUnknownBucket(t *testing.T) {
	h, _, _ := newTestHandlers()

	resp := do(h.InitiateUploadHandler, "POST", "/nosuch/video?uploads", nil, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("initiate on unknown bucket: got status %d, expected %d", resp.Code, http.StatusNotFound)
	}
}

func TestCompleteUploadManifestErrors(t *testing.T) {
	h, _, _ := newTestHandlers()

	uploadID := initiate(t, h)
	etag1 := putPart(t, h, uploadID, 1, randomBytes(60, 7))
	etag2 := putPart(t, h, uploadID, 2, randomBytes(60, 8))

	testCases := []struct {
		body     []byte
		wantCode string
	}{
		{[]byte("this is not xml"), "MalformedXML"},
		{manifestBody(t), "MalformedXML"},
		{manifestBody(t,
			s3.CompletePart{PartNumber: 2, ETag: etag2},
			s3.CompletePart{PartNumber: 1, ETag: etag1},
		), "InvalidPartOrder"},
		{manifestBody(t,
			s3.CompletePart{PartNumber: 1, ETag: etag1},
			s3.CompletePart{PartNumber: 1, ETag: etag1},
		), "InvalidPartOrder"},
		{manifestBody(t,
			s3.CompletePart{PartNumber: 1, ETag: etag1},
			s3.CompletePart{PartNumber: 4, ETag: etag2},
		), "InvalidPart"},
		{manifestBody(t,
			s3.CompletePart{PartNumber: 1, ETag: "0000deadbeef0000deadbeef0000dead"},
		), "InvalidPart"},
	}

	for i, c := range testCases {
		resp := do(h.CompleteUploadHandler, "POST", "/docs/video?uploadId="+uploadID, c.body, nil)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("case %d: got status %d, expected %d", i, resp.Code, http.StatusBadRequest)
			continue
		}
		e := s3.Error{}
		if err := xml.Unmarshal(resp.Body.Bytes(), &e); err != nil {
			t.Fatalf("case %d: failed to decode the error response: %v", i, err)
		}
		if e.Code != c.wantCode {
			t.Errorf("case %d: error code %q, expected %q", i, e.Code, c.wantCode)
		}
	}

	// A rejected manifest leaves the upload alive; clients quote their
	// etags and the quoted form still completes.
	body := manifestBody(t,
		s3.CompletePart{PartNumber: 1, ETag: "\"" + etag1 + "\""},
		s3.CompletePart{PartNumber: 2, ETag: "\"" + etag2 + "\""},
	)
	resp := do(h.CompleteUploadHandler, "POST", "/docs/video?uploadId="+uploadID, body, nil)
	if resp.Code != http.StatusOK {
		t.Errorf("complete with quoted etags: got status %d, expected %d", resp.Code, http.StatusOK)
	}
}

func TestAbortUpload(t *testing.T) {
	h, store, bs := newTestHandlers()

	uploadID := initiate(t, h)
	putPart(t, h, uploadID, 1, randomBytes(200, 9))
	putPart(t, h, uploadID, 2, randomBytes(100, 10))

	resp := do(h.AbortUploadHandler, "DELETE", "/docs/video?uploadId="+uploadID, nil, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("abort upload: got status %d, expected %d", resp.Code, http.StatusNoContent)
	}

	if _, err := store.FindUpload(uploadID); err != repository.ErrNotExist {
		t.Error("upload row is still stored after the abort")
	}
	ctx := context.Background()
	for number := 1; number <= 2; number++ {
		d := blob.Descriptor{Region: testRegion, Bucket: "docs", Key: "video", Upload: uploadID, Part: number}
		if _, err := bs.Meta(ctx, d); err == nil {
			t.Errorf("part %d payload is still stored after the abort", number)
		}
	}

	// The id is dead now.
	resp = do(h.AbortUploadHandler, "DELETE", "/docs/video?uploadId="+uploadID, nil, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("abort twice: got status %d, expected %d", resp.Code, http.StatusNotFound)
	}
}

func TestListPartsPaging(t *testing.T) {
	h, _, _ := newTestHandlers()

	uploadID := initiate(t, h)
	for number := 1; number <= 5; number++ {
		putPart(t, h, uploadID, number, randomBytes(20, int64(number)))
	}

	testCases := []struct {
		query       string
		wantNumbers []int
		wantTrunc   bool
		wantNext    int
	}{
		{"&max-parts=2", []int{1, 2}, true, 2},
		{"&max-parts=2&part-number-marker=2", []int{3, 4}, true, 4},
		{"&max-parts=2&part-number-marker=4", []int{5}, false, 0},
		{"", []int{1, 2, 3, 4, 5}, false, 0},
		{"&max-parts=0", []int{}, true, 0},
	}

	for _, c := range testCases {
		resp := do(h.ListPartsHandler, "GET", "/docs/video?uploadId="+uploadID+c.query, nil, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("list %q: got status %d, expected %d", c.query, resp.Code, http.StatusOK)
		}

		listing := s3.ListPartsResult{}
		if err := xml.Unmarshal(resp.Body.Bytes(), &listing); err != nil {
			t.Fatalf("list %q: failed to decode the listing: %v", c.query, err)
		}

		numbers := []int{}
		for _, p := range listing.Part {
			numbers = append(numbers, p.PartNumber)
		}
		if len(numbers) != len(c.wantNumbers) {
			t.Errorf("list %q: parts %v, expected %v", c.query, numbers, c.wantNumbers)
		} else {
			for i := range numbers {
				if numbers[i] != c.wantNumbers[i] {
					t.Errorf("list %q: parts %v, expected %v", c.query, numbers, c.wantNumbers)
					break
				}
			}
		}

		if listing.IsTruncated != c.wantTrunc {
			t.Errorf("list %q: truncated %v, expected %v", c.query, listing.IsTruncated, c.wantTrunc)
		}
		if listing.IsTruncated && listing.NextPartNumberMarker != c.wantNext {
			t.Errorf("list %q: next marker %d, expected %d", c.query, listing.NextPartNumberMarker, c.wantNext)
		}
	}

	if resp := do(h.ListPartsHandler, "GET", "/docs/video?uploadId="+uploadID+"&max-parts=nan", nil, nil); resp.Code != http.StatusBadRequest {
		t.Errorf("list with bad max-parts: got status %d, expected %d", resp.Code, http.StatusBadRequest)
	}
	if resp := do(h.ListPartsHandler, "GET", "/docs/video?uploadId="+uploadID+"&part-number-marker=-1", nil, nil); resp.Code != http.StatusBadRequest {
		t.Errorf("list with bad marker: got status %d, expected %d", resp.Code, http.StatusBadRequest)
	}
}
