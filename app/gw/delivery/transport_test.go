package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gitter-badger/pithos/pkg/util/metrics"
	"github.com/pkg/errors"
)

// routeRecorder implements the delivery service interfaces and
// records which handler a request was routed to.
type routeRecorder struct {
	hit string
}

func (t *routeRecorder) mark(name string, w http.ResponseWriter) {
	t.hit = name
	w.WriteHeader(http.StatusOK)
}

func (t *routeRecorder) MakeBucketHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("MakeBucket", w)
}
func (t *routeRecorder) RemoveBucketHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("RemoveBucket", w)
}
func (t *routeRecorder) HeadBucketHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("HeadBucket", w)
}
func (t *routeRecorder) ListBucketsHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("ListBuckets", w)
}
func (t *routeRecorder) ListObjectsHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("ListObjects", w)
}
func (t *routeRecorder) PutObjectHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("PutObject", w)
}
func (t *routeRecorder) CopyObjectHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("CopyObject", w)
}
func (t *routeRecorder) GetObjectHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("GetObject", w)
}
func (t *routeRecorder) HeadObjectHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("HeadObject", w)
}
func (t *routeRecorder) DeleteObjectHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("DeleteObject", w)
}
func (t *routeRecorder) InitiateUploadHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("InitiateUpload", w)
}
func (t *routeRecorder) PutPartHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("PutPart", w)
}
func (t *routeRecorder) ListPartsHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("ListParts", w)
}
func (t *routeRecorder) CompleteUploadHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("CompleteUpload", w)
}
func (t *routeRecorder) AbortUploadHandler(w http.ResponseWriter, r *http.Request) {
	t.mark("AbortUpload", w)
}

func TestMakeHandler(t *testing.T) {
	testCases := []struct {
		method string
		target string
		header [2]string
		want   string
	}{
		{"GET", "/", [2]string{}, "ListBuckets"},
		{"PUT", "/bucket", [2]string{}, "MakeBucket"},
		{"DELETE", "/bucket", [2]string{}, "RemoveBucket"},
		{"HEAD", "/bucket", [2]string{}, "HeadBucket"},
		{"GET", "/bucket", [2]string{}, "ListObjects"},
		{"GET", "/bucket?prefix=a/&delimiter=/", [2]string{}, "ListObjects"},
		{"PUT", "/bucket/object", [2]string{}, "PutObject"},
		{"PUT", "/bucket/dir/sub/object.txt", [2]string{}, "PutObject"},
		{"PUT", "/bucket/object", [2]string{"X-Amz-Copy-Source", "/src/key"}, "CopyObject"},
		{"GET", "/bucket/object", [2]string{}, "GetObject"},
		{"HEAD", "/bucket/object", [2]string{}, "HeadObject"},
		{"DELETE", "/bucket/object", [2]string{}, "DeleteObject"},
		{"POST", "/bucket/object?uploads", [2]string{}, "InitiateUpload"},
		{"PUT", "/bucket/object?partNumber=1&uploadId=fc4bb34ea50d9a2dc", [2]string{}, "PutPart"},
		{"GET", "/bucket/object?uploadId=fc4bb34ea50d9a2dc", [2]string{}, "ListParts"},
		{"POST", "/bucket/object?uploadId=fc4bb34ea50d9a2dc", [2]string{}, "CompleteUpload"},
		{"DELETE", "/bucket/object?uploadId=fc4bb34ea50d9a2dc", [2]string{}, "AbortUpload"},
	}

	rec := &routeRecorder{}
	h := makeHandler(rec, rec, rec)

	for _, c := range testCases {
		rec.hit = ""

		req := httptest.NewRequest(c.method, c.target, nil)
		if c.header[0] != "" {
			req.Header.Set(c.header[0], c.header[1])
		}

		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)

		if rec.hit != c.want {
			t.Errorf("%s %s: routed to %q, expected %q", c.method, c.target, rec.hit, c.want)
		}
	}
}

type fakeBackend struct {
	err error
}

func (f *fakeBackend) Ping(ctx context.Context) error {
	return f.err
}

func TestAdminHandler(t *testing.T) {
	healthy := &fakeBackend{}
	broken := &fakeBackend{err: errors.New("connection refused")}

	h := makeAdminHandler(metrics.New(), []Pinger{healthy})

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest("GET", "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Errorf("healthz with healthy backends: got status %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest("GET", "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Errorf("metrics: got status %d", resp.Code)
	}

	h = makeAdminHandler(metrics.New(), []Pinger{healthy, broken})

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest("GET", "/healthz", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz with a broken backend: got status %d", resp.Code)
	}
}
