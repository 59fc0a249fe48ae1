package delivery

import (
	"context"
	"net/http"
	"time"

	"github.com/gitter-badger/pithos/pkg/util/metrics"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/gorilla/mux"
)

// makeHandler routes s3 requests to the matching usecase handler.
//
// Routes with query or header matchers are registered ahead of the
// plain method routes of the same subrouter; mux tries routes in
// registration order.
func makeHandler(bs BucketService, os ObjectService, ms MultipartService) http.Handler {
	r := mux.NewRouter()

	// API routers.
	ar := r.PathPrefix("/").Subrouter()
	br := ar.PathPrefix("/{bucket}").Subrouter()
	or := br.PathPrefix("/{object:.+}").Subrouter()

	// Multipart upload request handlers
	or.Methods("POST").Queries("uploads", "").HandlerFunc(ms.InitiateUploadHandler)
	or.Methods("POST").Queries("uploadId", "{uploadId}").HandlerFunc(ms.CompleteUploadHandler)
	or.Methods("PUT").Queries("partNumber", "{partNumber}", "uploadId", "{uploadId}").HandlerFunc(ms.PutPartHandler)
	or.Methods("GET").Queries("uploadId", "{uploadId}").HandlerFunc(ms.ListPartsHandler)
	or.Methods("DELETE").Queries("uploadId", "{uploadId}").HandlerFunc(ms.AbortUploadHandler)

	// Object request handlers
	or.Methods("PUT").Headers("X-Amz-Copy-Source", "").HandlerFunc(os.CopyObjectHandler)
	or.Methods("PUT").HandlerFunc(os.PutObjectHandler)
	or.Methods("GET").HandlerFunc(os.GetObjectHandler)
	or.Methods("HEAD").HandlerFunc(os.HeadObjectHandler)
	or.Methods("DELETE").HandlerFunc(os.DeleteObjectHandler)

	// Bucket request handlers
	br.Methods("PUT").HandlerFunc(bs.MakeBucketHandler)
	br.Methods("DELETE").HandlerFunc(bs.RemoveBucketHandler)
	br.Methods("HEAD").HandlerFunc(bs.HeadBucketHandler)
	br.Methods("GET").HandlerFunc(bs.ListObjectsHandler)

	// Service request handlers
	ar.Path("/").Methods("GET").HandlerFunc(bs.ListBucketsHandler)

	return r
}

// makeAdminHandler serves the endpoints of the admin port.
func makeAdminHandler(m *metrics.Metrics, backends []Pinger) http.Handler {
	ctxLogger := mlog.GetPackageLogger("app/gw/delivery")

	amux := http.NewServeMux()
	amux.Handle("/metrics", m.Handler())
	amux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		for _, b := range backends {
			if err := b.Ping(ctx); err != nil {
				ctxLogger.WithField("method", "healthz").Error(err)
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return amux
}
