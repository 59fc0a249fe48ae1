package bucket

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gitter-badger/pithos/app/gw/domain/model/cred"
	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository"
	"github.com/gitter-badger/pithos/app/gw/usecase/auth"
	"github.com/gitter-badger/pithos/pkg/client"
	"github.com/gitter-badger/pithos/pkg/client/request"
	"github.com/gitter-badger/pithos/pkg/s3"
	"github.com/gitter-badger/pithos/pkg/util/config"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger *logrus.Entry

const (
	// defaultMaxKeys is the listing size ceiling of the s3 protocol.
	defaultMaxKeys = 1000
	// listPageSize is the number of catalog rows fetched per page
	// while rolling up a listing.
	listPageSize = 1000
)

// Handlers provides access to the bucket domain.
type Handlers interface {
	MakeBucketHandler(w http.ResponseWriter, r *http.Request)
	RemoveBucketHandler(w http.ResponseWriter, r *http.Request)
	HeadBucketHandler(w http.ResponseWriter, r *http.Request)
	ListBucketsHandler(w http.ResponseWriter, r *http.Request)
	ListObjectsHandler(w http.ResponseWriter, r *http.Request)
}

type handlers struct {
	cfg                 *config.Gw
	requestEventFactory *request.RequestEventFactory
	authHandlers        auth.Handlers
	store               Repository
}

// NewHandlers creates a bucket handlers with necessary dependencies.
func NewHandlers(cfg *config.Gw, f *request.RequestEventFactory, authHandlers auth.Handlers, s Repository) Handlers {
	logger = mlog.GetPackageLogger("app/gw/usecase/bucket")

	return &handlers{
		cfg:                 cfg,
		requestEventFactory: f,
		authHandlers:        authHandlers,
		store:               s,
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

// MakeBucketHandler handles the client request for creating a bucket.
func (h *handlers) MakeBucketHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.MakeBucketHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}

	if validBucketName(req.Bucket()) == false {
		s3.SendError(w, s3.ErrInvalidBucketName, r.URL.Path, "")
		return
	}

	err := h.store.MakeBucket(req.Bucket(), req.AccessKey(), h.cfg.Region)
	if err == repository.ErrDuplicateEntry {
		s3.SendError(w, s3.ErrBucketAlreadyExists, r.URL.Path, "")
		return
	} else if err == repository.ErrNotExist {
		// No user row matched the access key.
		req.SendNoSuchKey()
		return
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to make bucket"))
		req.SendInternalError()
		return
	}

	req.SendSuccess()
}

// RemoveBucketHandler handles the client request for removing a bucket.
func (h *handlers) RemoveBucketHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.RemoveBucketHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}

	count, err := h.store.CountObjects(req.Bucket())
	if err == repository.ErrNotExist {
		s3.SendError(w, s3.ErrNoSuchBucket, r.URL.Path, "")
		return
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to count objects"))
		req.SendInternalError()
		return
	}
	if count > 0 {
		s3.SendError(w, s3.ErrBucketNotEmpty, r.URL.Path, "")
		return
	}

	err = h.store.RemoveBucket(req.Bucket(), req.AccessKey())
	if err == repository.ErrNotExist {
		s3.SendError(w, s3.ErrNoSuchBucket, r.URL.Path, "")
		return
	} else if err == repository.ErrNotEmpty {
		// Rows landed between the emptiness check and the removal,
		// or uploads are still in flight.
		s3.SendError(w, s3.ErrBucketNotEmpty, r.URL.Path, "")
		return
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to remove bucket"))
		req.SendInternalError()
		return
	}

	req.SendNoContent()
}

// HeadBucketHandler handles the client request for checking a bucket.
func (h *handlers) HeadBucketHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.HeadBucketHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}

	_, err := h.store.FindBucket(req.Bucket())
	if err == repository.ErrNotExist {
		s3.SendError(w, s3.ErrNoSuchBucket, r.URL.Path, "")
		return
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to find bucket"))
		req.SendInternalError()
		return
	}

	req.SendSuccess()
}

// ListBucketsHandler handles the client request for listing buckets
// which are owned by the calling user.
func (h *handlers) ListBucketsHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.ListBucketsHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}

	buckets, err := h.store.ListBuckets(req.AccessKey())
	if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to list buckets"))
		req.SendInternalError()
		return
	}

	response := s3.ListAllMyBucketsResult{
		Xmlns: s3.Xmlns,
		Owner: s3.Owner{
			ID:          req.AccessKey(),
			DisplayName: req.AccessKey(),
		},
	}
	for _, b := range buckets {
		response.Buckets.Bucket = append(response.Buckets.Bucket, s3.BucketEntry{
			Name:         b.Name,
			CreationDate: b.Created.UTC().Format(s3.TimeFormat),
		})
	}

	s3.SendXML(w, response, http.StatusOK)
}

// ListObjectsHandler handles the client request for listing objects
// of a bucket.
func (h *handlers) ListObjectsHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.ListObjectsHandler")

	req := h.authenticate(w, r)
	if req == nil {
		return
	}

	if _, err := h.store.FindBucket(req.Bucket()); err == repository.ErrNotExist {
		s3.SendError(w, s3.ErrNoSuchBucket, r.URL.Path, "")
		return
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to find bucket"))
		req.SendInternalError()
		return
	}

	query := r.URL.Query()
	prefix := query.Get("prefix")
	delimiter := query.Get("delimiter")
	marker := query.Get("marker")

	maxKeys := defaultMaxKeys
	if v := query.Get("max-keys"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s3.SendError(w, s3.ErrInvalidArgument, r.URL.Path, "")
			return
		}
		if n < maxKeys {
			maxKeys = n
		}
	}

	listing, err := h.listObjects(req.Bucket(), prefix, delimiter, marker, maxKeys)
	if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to list objects"))
		req.SendInternalError()
		return
	}

	response := s3.ListBucketResult{
		Xmlns:       s3.Xmlns,
		Name:        req.Bucket(),
		Prefix:      prefix,
		Marker:      marker,
		MaxKeys:     maxKeys,
		Delimiter:   delimiter,
		IsTruncated: listing.truncated,
	}
	if listing.truncated && delimiter != "" {
		response.NextMarker = listing.nextMarker
	}
	for _, e := range listing.entries {
		response.Contents = append(response.Contents, s3.ObjectEntry{
			Key:          e.Key,
			LastModified: e.Modified.UTC().Format(s3.TimeFormat),
			ETag:         e.ETag,
			Size:         e.Size,
			StorageClass: "STANDARD",
		})
	}
	for _, p := range listing.prefixes {
		response.CommonPrefixes = append(response.CommonPrefixes, s3.CommonPrefix{Prefix: p})
	}

	s3.SendXML(w, response, http.StatusOK)
}

// objectListing is the rolled up result of one listing request.
type objectListing struct {
	entries    []Entry
	prefixes   []string
	truncated  bool
	nextMarker string
}

// listObjects walks the ordered object catalog and rolls keys sharing
// a delimited group under the prefix up into common prefixes. Keys and
// rolled up groups both count toward maxKeys. Rolled up groups are
// skipped over in the catalog rather than fetched and deduplicated.
func (h *handlers) listObjects(bucket, prefix, delimiter, marker string, maxKeys int) (*objectListing, error) {
	l := &objectListing{}
	if maxKeys == 0 {
		return l, nil
	}

	from := prefix
	if marker >= from {
		from = nextKey(marker)
	}

	count := 0
	for {
		page, err := h.store.ListObjects(bucket, from, listPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return l, nil
		}

		rolled := false
		for _, e := range page {
			if strings.HasPrefix(e.Key, prefix) == false {
				// Keys are ordered; the prefix range is exhausted.
				return l, nil
			}

			idx := -1
			if delimiter != "" {
				idx = strings.Index(e.Key[len(prefix):], delimiter)
			}
			if idx >= 0 {
				cp := e.Key[:len(prefix)+idx+len(delimiter)]
				if cp > marker {
					if count == maxKeys {
						l.truncated = true
						return l, nil
					}
					l.prefixes = append(l.prefixes, cp)
					l.nextMarker = cp
					count++
				}

				// Jump over the rest of the group whether it was
				// reported now or on an earlier page.
				from = skipPrefix(cp)
				if from == "" {
					return l, nil
				}
				rolled = true
				break
			}

			if count == maxKeys {
				l.truncated = true
				return l, nil
			}
			l.entries = append(l.entries, e)
			l.nextMarker = e.Key
			count++
			from = nextKey(e.Key)
		}

		if rolled == false && len(page) < listPageSize {
			return l, nil
		}
	}
}

// nextKey returns the smallest key that sorts after k.
func nextKey(k string) string {
	return k + "\x00"
}

// skipPrefix returns the smallest key sorting after every key that
// begins with p, or an empty string when no key can follow.
func skipPrefix(p string) string {
	b := []byte(p)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

// validBucketName reports whether the given name keeps the s3 bucket
// naming rules: 3 to 63 lower case letters, digits, dots and hyphens,
// beginning and ending with a letter or a digit.
func validBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '-':
			if i == 0 || i == len(name)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
