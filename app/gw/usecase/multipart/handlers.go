package multipart

import (
	"context"
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

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
	"github.com/gitter-badger/pithos/pkg/util/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger *logrus.Entry

const (
	// maxPartNumber is the highest part number the protocol allows.
	maxPartNumber = 10000
	// defaultMaxParts is the listing size ceiling of the s3 protocol.
	defaultMaxParts = 1000
	// partPageSize is the number of part rows fetched per page while
	// collecting the full recorded set.
	partPageSize = 1000
)

// Handlers provides access to the multipart upload domain.
type Handlers interface {
	InitiateUploadHandler(w http.ResponseWriter, r *http.Request)
	PutPartHandler(w http.ResponseWriter, r *http.Request)
	ListPartsHandler(w http.ResponseWriter, r *http.Request)
	CompleteUploadHandler(w http.ResponseWriter, r *http.Request)
	AbortUploadHandler(w http.ResponseWriter, r *http.Request)
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

// NewHandlers creates a multipart handlers with necessary dependencies.
func NewHandlers(cfg *config.Gw, f *request.RequestEventFactory, authHandlers auth.Handlers,
	s Repository, bs blob.Store, sr *stream.Streamer, m *metrics.Metrics) Handlers {
	logger = mlog.GetPackageLogger("app/gw/usecase/multipart")

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

// findUpload resolves the uploadId query argument against the catalog
// and checks it belongs to the request coordinates. On failure the
// response has already been sent and nil is returned.
func (h *handlers) findUpload(req client.RequestEvent, w http.ResponseWriter, r *http.Request) *Upload {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.findUpload")

	up, err := h.store.FindUpload(r.URL.Query().Get("uploadId"))
	if err == repository.ErrNotExist {
		s3.SendError(w, s3.ErrNoSuchUpload, r.URL.Path, "")
		return nil
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to find upload"))
		req.SendInternalError()
		return nil
	}

	if up.Bucket != req.Bucket() || up.Key != req.Key() {
		s3.SendError(w, s3.ErrNoSuchUpload, r.URL.Path, "")
		return nil
	}

	return up
}

// partDescriptor addresses the blob holding one part of an upload.
func (h *handlers) partDescriptor(up *Upload, number int) blob.Descriptor {
	return blob.Descriptor{
		Region: h.cfg.Region,
		Bucket: up.Bucket,
		Key:    up.Key,
		Upload: up.ID,
		Part:   number,
	}
}

// InitiateUploadHandler handles the client request for starting a
// multipart upload.
func (h *handlers) InitiateUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.InitiateUploadHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}

	exists, err := h.store.BucketExists(req.Bucket())
	if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to find bucket"))
		req.SendInternalError()
		return
	}
	if exists == false {
		s3.SendError(w, s3.ErrNoSuchBucket, r.URL.Path, "")
		return
	}

	uploadID := uuid.Gen()
	if err := h.store.AddUpload(uploadID, req.Bucket(), req.Key(), req.AccessKey()); err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to save upload row"))
		req.SendInternalError()
		return
	}

	response := s3.InitiateMultipartUploadResult{
		Xmlns:    s3.Xmlns,
		Bucket:   req.Bucket(),
		Key:      req.Key(),
		UploadId: uploadID,
	}
	s3.SendXML(w, response, http.StatusOK)
}

// PutPartHandler handles the client request for uploading one part of
// a multipart upload. Re-uploading a part number replaces the part.
func (h *handlers) PutPartHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.PutPartHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}

	number, err := strconv.Atoi(r.URL.Query().Get("partNumber"))
	if err != nil || number < 1 || number > maxPartNumber {
		s3.SendError(w, s3.ErrInvalidArgument, r.URL.Path, "")
		return
	}

	up := h.findUpload(req, w, r)
	if up == nil {
		return
	}

	wantMD5, ok := req.ContentMD5()
	if ok == false {
		s3.SendError(w, s3.ErrInvalidDigest, r.URL.Path, "")
		return
	}

	ctx := r.Context()
	d := h.partDescriptor(up, number)

	if err := h.blobStore.Delete(ctx, d); err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to clear previous part payload"))
		req.SendInternalError()
		return
	}

	meta, err := h.streamer.Ingest(ctx, r.Body, d, true)
	h.metrics.ObserveStream("ingest", meta.Size, err)
	if err != nil {
		ctxLogger.Error(errors.Wrapf(err, "failed to ingest part %d of upload %s", number, up.ID))
		h.discard(ctx, d)
		req.SendInternalError()
		return
	}

	if wantMD5 != "" && wantMD5 != meta.Checksum {
		h.discard(ctx, d)
		s3.SendError(w, s3.ErrBadDigest, r.URL.Path, "")
		return
	}

	if err := h.store.AddPart(up.ID, number, meta.Size, meta.Checksum); err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to save part row"))
		h.discard(ctx, d)
		req.SendInternalError()
		return
	}

	req.ResponseWriter().Header().Set("ETag", meta.Checksum)
	req.SendSuccess()
}

// ListPartsHandler handles the client request for listing the parts
// recorded so far for a multipart upload.
func (h *handlers) ListPartsHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.ListPartsHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}

	up := h.findUpload(req, w, r)
	if up == nil {
		return
	}

	query := r.URL.Query()

	marker := 0
	if v := query.Get("part-number-marker"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s3.SendError(w, s3.ErrInvalidArgument, r.URL.Path, "")
			return
		}
		marker = n
	}

	maxParts := defaultMaxParts
	if v := query.Get("max-parts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s3.SendError(w, s3.ErrInvalidArgument, r.URL.Path, "")
			return
		}
		if n < maxParts {
			maxParts = n
		}
	}

	// One extra row tells truncation apart from an exact fit.
	parts, err := h.store.ListParts(up.ID, marker+1, maxParts+1)
	if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to list parts"))
		req.SendInternalError()
		return
	}

	truncated := len(parts) > maxParts
	if truncated {
		parts = parts[:maxParts]
	}

	response := s3.ListPartsResult{
		Xmlns:            s3.Xmlns,
		Bucket:           up.Bucket,
		Key:              up.Key,
		UploadId:         up.ID,
		PartNumberMarker: marker,
		MaxParts:         maxParts,
		IsTruncated:      truncated,
	}
	for _, p := range parts {
		response.Part = append(response.Part, s3.PartEntry{
			PartNumber:   p.Number,
			LastModified: p.Modified.UTC().Format(s3.TimeFormat),
			ETag:         p.ETag,
			Size:         p.Size,
		})
	}
	if truncated && len(parts) > 0 {
		response.NextPartNumberMarker = parts[len(parts)-1].Number
	}

	s3.SendXML(w, response, http.StatusOK)
}

// CompleteUploadHandler handles the client request for assembling the
// uploaded parts into the final object.
func (h *handlers) CompleteUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.CompleteUploadHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}

	up := h.findUpload(req, w, r)
	if up == nil {
		return
	}

	var manifest s3.CompleteMultipartUpload
	if err := xml.NewDecoder(r.Body).Decode(&manifest); err != nil || len(manifest.Part) == 0 {
		s3.SendError(w, s3.ErrMalformedXML, r.URL.Path, "")
		return
	}

	recorded, err := h.allParts(up.ID)
	if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to list parts"))
		req.SendInternalError()
		return
	}

	selected, errCode := matchManifest(manifest.Part, recorded)
	if errCode != s3.ErrNone {
		s3.SendError(w, errCode, r.URL.Path, "")
		return
	}

	ctx := r.Context()
	dst := blob.Descriptor{Region: h.cfg.Region, Bucket: up.Bucket, Key: up.Key}

	if err := h.blobStore.Delete(ctx, dst); err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to clear previous payload"))
		req.SendInternalError()
		return
	}

	parts := make([]blob.Descriptor, 0, len(selected))
	for _, p := range selected {
		parts = append(parts, h.partDescriptor(up, p.Number))
	}

	progress := &consolidateProgress{}
	meta, err := h.streamer.Consolidate(ctx, parts, dst, progress)
	h.metrics.ObserveStream("consolidate", meta.Size, err)
	if err != nil {
		ctxLogger.Error(errors.Wrapf(err, "failed to consolidate upload %s", up.ID))
		h.discard(ctx, dst)
		req.SendInternalError()
		return
	}
	ctxLogger.Infof("consolidated %d parts of upload %s into %s/%s: %d blocks, %d chunks, %d bytes",
		len(parts), up.ID, up.Bucket, up.Key, progress.blocks, progress.chunks, meta.Size)

	if err := h.store.CompleteUpload(up.ID, meta.Size, meta.Checksum); err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to swap catalog rows"))
		h.discard(ctx, dst)
		req.SendInternalError()
		return
	}

	// Part payloads are dead weight now; the assembled object owns
	// the bytes.
	for _, p := range recorded {
		h.discard(ctx, h.partDescriptor(up, p.Number))
	}

	response := s3.CompleteMultipartUploadResult{
		Xmlns:    s3.Xmlns,
		Location: "/" + up.Bucket + "/" + up.Key,
		Bucket:   up.Bucket,
		Key:      up.Key,
		ETag:     meta.Checksum,
	}
	s3.SendXML(w, response, http.StatusOK)
}

// AbortUploadHandler handles the client request for aborting a
// multipart upload and dropping its recorded parts.
func (h *handlers) AbortUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.AbortUploadHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}

	up := h.findUpload(req, w, r)
	if up == nil {
		return
	}

	recorded, err := h.allParts(up.ID)
	if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to list parts"))
		req.SendInternalError()
		return
	}

	ctx := r.Context()
	for _, p := range recorded {
		h.discard(ctx, h.partDescriptor(up, p.Number))
	}

	if err := h.store.AbortUpload(up.ID); err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to remove upload rows"))
		req.SendInternalError()
		return
	}

	req.SendNoContent()
}

// allParts pages through the catalog and returns every recorded part
// of the upload, ascending by part number.
func (h *handlers) allParts(uploadID string) ([]Part, error) {
	var all []Part

	from := 1
	for {
		page, err := h.store.ListParts(uploadID, from, partPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < partPageSize {
			return all, nil
		}
		from = page[len(page)-1].Number + 1
	}
}

// matchManifest validates the client's part list against the recorded
// parts and returns the referenced parts in manifest order. Recorded
// parts the manifest leaves out are legal; they are simply dropped
// from the assembled object.
func matchManifest(manifest []s3.CompletePart, recorded []Part) ([]Part, s3.ErrorCode) {
	byNumber := make(map[int]Part, len(recorded))
	for _, p := range recorded {
		byNumber[p.Number] = p
	}

	selected := make([]Part, 0, len(manifest))
	last := 0
	for _, m := range manifest {
		if m.PartNumber <= last {
			return nil, s3.ErrInvalidPartOrder
		}
		last = m.PartNumber

		p, ok := byNumber[m.PartNumber]
		if ok == false {
			return nil, s3.ErrInvalidPart
		}
		if strings.Trim(m.ETag, "\"") != p.ETag {
			return nil, s3.ErrInvalidPart
		}

		selected = append(selected, p)
	}

	return selected, s3.ErrNone
}

// discard removes a part or object payload; failures only get logged.
func (h *handlers) discard(ctx context.Context, d blob.Descriptor) {
	if err := h.blobStore.Delete(ctx, d); err != nil {
		logger.Error(errors.Wrapf(err, "failed to discard blob %s/%s", d.Bucket, d.Key))
	}
}

// consolidateProgress tallies the engine's progress callbacks while
// parts are copied into the final object.
type consolidateProgress struct {
	blocks int
	chunks int
}

func (p *consolidateProgress) Block(part int, blockID int64) {
	p.blocks++
}

func (p *consolidateProgress) Chunk(part int, size int64) {
	p.chunks++
}
