package object

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gitter-badger/pithos/app/gw/domain/model/cred"
	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository"
	"github.com/gitter-badger/pithos/app/gw/usecase/auth"
	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/gitter-badger/pithos/pkg/client"
	"github.com/gitter-badger/pithos/pkg/client/request"
	"github.com/gitter-badger/pithos/pkg/s3"
	"github.com/gitter-badger/pithos/pkg/stream"
	"github.com/gitter-badger/pithos/pkg/util/config"
	"github.com/gitter-badger/pithos/pkg/util/metrics"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger *logrus.Entry

// Handlers provides access to the object domain.
type Handlers interface {
	PutObjectHandler(w http.ResponseWriter, r *http.Request)
	CopyObjectHandler(w http.ResponseWriter, r *http.Request)
	GetObjectHandler(w http.ResponseWriter, r *http.Request)
	HeadObjectHandler(w http.ResponseWriter, r *http.Request)
	DeleteObjectHandler(w http.ResponseWriter, r *http.Request)
}

type handlers struct {
	cfg                 *config.Gw
	requestEventFactory *request.RequestEventFactory
	authHandlers        auth.Handlers
	store               Repository
	blobStore           blob.Store
	streamer            *stream.Streamer
	metrics             *metrics.Metrics
}

// NewHandlers creates an object handlers with necessary dependencies.
func NewHandlers(cfg *config.Gw, f *request.RequestEventFactory, authHandlers auth.Handlers,
	s Repository, bs blob.Store, sr *stream.Streamer, m *metrics.Metrics) Handlers {
	logger = mlog.GetPackageLogger("app/gw/usecase/object")

	return &handlers{
		cfg:                 cfg,
		requestEventFactory: f,
		authHandlers:        authHandlers,
		store:               s,
		blobStore:           bs,
		streamer:            sr,
		metrics:             m,
	}
}

// authenticate creates a request event and checks its signature.
// On failure the response has already been sent and nil is returned.
func (h *handlers) authenticate(w http.ResponseWriter, r *http.Request) client.RequestEvent {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.authenticate")

	req, err := h.requestEventFactory.CreateRequestEvent(w, r)
	if err != nil {
		ctxLogger.Error(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	sk, err := h.authHandlers.GetSecretKey(cred.Key(req.AccessKey()))
	if err == auth.ErrNoSuchKey {
		req.SendNoSuchKey()
		return nil
	} else if err != nil {
		req.SendInternalError()
		return nil
	}

	if req.Auth(sk.String()) == false {
		req.SendIncorrectKey()
		return nil
	}

	return req
}

// descriptor addresses the blob behind the request coordinates.
func (h *handlers) descriptor(req client.RequestEvent) blob.Descriptor {
	return blob.Descriptor{
		Region: h.cfg.Region,
		Bucket: req.Bucket(),
		Key:    req.Key(),
	}
}

// bucketExists sends the no such bucket error when the request's
// bucket has no catalog row.
func (h *handlers) bucketExists(req client.RequestEvent, w http.ResponseWriter, r *http.Request) bool {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.bucketExists")

	exists, err := h.store.BucketExists(req.Bucket())
	if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to find bucket"))
		req.SendInternalError()
		return false
	}
	if exists == false {
		s3.SendError(w, s3.ErrNoSuchBucket, r.URL.Path, "")
		return false
	}

	return true
}

// PutObjectHandler handles the client request for creating an object.
func (h *handlers) PutObjectHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.PutObjectHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}
	if h.bucketExists(req, w, r) == false {
		return
	}

	wantMD5, ok := req.ContentMD5()
	if ok == false {
		s3.SendError(w, s3.ErrInvalidDigest, r.URL.Path, "")
		return
	}

	ctx := r.Context()
	d := h.descriptor(req)

	// Overwrite semantics: the previous payload has to go before new
	// chunks can land at the same coordinates.
	if err := h.blobStore.Delete(ctx, d); err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to clear previous payload"))
		req.SendInternalError()
		return
	}

	meta, err := h.streamer.Ingest(ctx, r.Body, d, true)
	h.metrics.ObserveStream("ingest", meta.Size, err)
	if err != nil {
		ctxLogger.Error(errors.Wrapf(err, "failed to ingest %s/%s", req.Bucket(), req.Key()))
		h.discard(ctx, d)
		req.SendInternalError()
		return
	}

	if wantMD5 != "" && wantMD5 != meta.Checksum {
		h.discard(ctx, d)
		s3.SendError(w, s3.ErrBadDigest, r.URL.Path, "")
		return
	}

	err = h.store.PutObject(req.Bucket(), req.Key(), meta.Size, meta.Checksum)
	if err == repository.ErrNotExist {
		// The bucket went away while the payload streamed in.
		h.discard(ctx, d)
		s3.SendError(w, s3.ErrNoSuchBucket, r.URL.Path, "")
		return
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to save object row"))
		h.discard(ctx, d)
		req.SendInternalError()
		return
	}

	req.ResponseWriter().Header().Set("ETag", meta.Checksum)
	req.SendSuccess()
}

// CopyObjectHandler handles the client request for copying an object
// inside the gateway's store.
func (h *handlers) CopyObjectHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.CopyObjectHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}
	if h.bucketExists(req, w, r) == false {
		return
	}

	srcBucket, srcKey, ok := parseCopySource(r.Header.Get("X-Amz-Copy-Source"))
	if ok == false {
		s3.SendError(w, s3.ErrInvalidArgument, r.URL.Path, "")
		return
	}
	if srcBucket == req.Bucket() && srcKey == req.Key() {
		// Copying onto itself would wipe the source first.
		s3.SendError(w, s3.ErrInvalidArgument, r.URL.Path, "")
		return
	}

	if _, err := h.store.FindObject(srcBucket, srcKey); err == repository.ErrNotExist {
		s3.SendError(w, s3.ErrNoSuchKey, r.URL.Path, "")
		return
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to find copy source"))
		req.SendInternalError()
		return
	}

	ctx := r.Context()
	src := blob.Descriptor{Region: h.cfg.Region, Bucket: srcBucket, Key: srcKey}
	dst := h.descriptor(req)

	if err := h.blobStore.Delete(ctx, dst); err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to clear previous payload"))
		req.SendInternalError()
		return
	}

	meta, err := h.streamer.Duplicate(ctx, src, dst)
	h.metrics.ObserveStream("duplicate", meta.Size, err)
	if err != nil {
		ctxLogger.Error(errors.Wrapf(err, "failed to duplicate %s/%s", srcBucket, srcKey))
		h.discard(ctx, dst)
		req.SendInternalError()
		return
	}

	err = h.store.PutObject(req.Bucket(), req.Key(), meta.Size, meta.Checksum)
	if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to save object row"))
		h.discard(ctx, dst)
		req.SendInternalError()
		return
	}

	response := s3.CopyObjectResult{
		Xmlns:        s3.Xmlns,
		LastModified: time.Now().UTC().Format(s3.TimeFormat),
		ETag:         meta.Checksum,
	}
	s3.SendXML(w, response, http.StatusOK)
}

// GetObjectHandler handles the client request for getting an object.
func (h *handlers) GetObjectHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.GetObjectHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}
	if h.bucketExists(req, w, r) == false {
		return
	}

	if r.Header.Get("Range") != "" {
		s3.SendError(w, s3.ErrNotImplemented, r.URL.Path, "")
		return
	}

	info, err := h.store.FindObject(req.Bucket(), req.Key())
	if err == repository.ErrNotExist {
		s3.SendError(w, s3.ErrNoSuchKey, r.URL.Path, "")
		return
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to find object"))
		req.SendInternalError()
		return
	}

	setObjectHeaders(w, info)
	w.WriteHeader(http.StatusOK)

	// The status line is out; a fault past this point can only cut
	// the connection short.
	err = h.streamer.Drain(r.Context(), h.descriptor(req), responseSink{w}, true)
	h.metrics.ObserveStream("drain", info.Size, err)
	if err != nil {
		ctxLogger.Error(errors.Wrapf(err, "failed to drain %s/%s", req.Bucket(), req.Key()))
	}
}

// HeadObjectHandler handles the client request for getting the
// metadata of an object.
func (h *handlers) HeadObjectHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.HeadObjectHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}
	if h.bucketExists(req, w, r) == false {
		return
	}

	info, err := h.store.FindObject(req.Bucket(), req.Key())
	if err == repository.ErrNotExist {
		s3.SendError(w, s3.ErrNoSuchKey, r.URL.Path, "")
		return
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to find object"))
		req.SendInternalError()
		return
	}

	setObjectHeaders(w, info)
	w.WriteHeader(http.StatusOK)
}

// DeleteObjectHandler handles the client request for deleting an
// object. Deleting an absent key succeeds, as the protocol demands.
func (h *handlers) DeleteObjectHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.DeleteObjectHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}
	if h.bucketExists(req, w, r) == false {
		return
	}

	err := h.store.RemoveObject(req.Bucket(), req.Key())
	if err != nil && err != repository.ErrNotExist {
		ctxLogger.Error(errors.Wrap(err, "failed to remove object row"))
		req.SendInternalError()
		return
	}

	if err := h.blobStore.Delete(r.Context(), h.descriptor(req)); err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to delete payload"))
		req.SendInternalError()
		return
	}

	req.SendNoContent()
}

// discard removes a half-written payload; failures only get logged
// since an error response is already on its way.
func (h *handlers) discard(ctx context.Context, d blob.Descriptor) {
	if err := h.blobStore.Delete(ctx, d); err != nil {
		logger.Error(errors.Wrapf(err, "failed to discard blob %s/%s", d.Bucket, d.Key))
	}
}

// setObjectHeaders writes the catalog metadata of an object into the
// response headers.
func setObjectHeaders(w http.ResponseWriter, info *Info) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("ETag", info.ETag)
	w.Header().Set("Last-Modified", info.Modified.UTC().Format(http.TimeFormat))
}

// parseCopySource splits an x-amz-copy-source header value into its
// bucket and key. The value is url encoded, may carry a leading slash
// and may carry a trailing query.
func parseCopySource(value string) (bucket, key string, ok bool) {
	value = strings.SplitN(value, "?", 2)[0]

	unescaped, err := url.PathUnescape(value)
	if err != nil {
		return "", "", false
	}

	fields := strings.SplitN(strings.TrimPrefix(unescaped, "/"), "/", 2)
	if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
		return "", "", false
	}
	return fields[0], fields[1], true
}

// responseSink adapts the response writer into the engine's sink. It
// has no Close on purpose: the server owns the connection, so
// releasing the sink only flushes.
type responseSink struct {
	w http.ResponseWriter
}

func (s responseSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s responseSink) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
