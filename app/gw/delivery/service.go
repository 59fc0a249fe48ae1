package delivery

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gitter-badger/pithos/pkg/security"
	"github.com/gitter-badger/pithos/pkg/util/config"
	"github.com/gitter-badger/pithos/pkg/util/metrics"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
)

var log *logrus.Entry

// Service provides http endpoints of the gateway; the s3 api for
// client applications and an admin api for health and metrics.
type Service struct {
	bs BucketService
	os ObjectService
	ms MultipartService

	clientL net.Listener
	adminL  net.Listener

	httpSrv  http.Server
	adminSrv http.Server
}

// NewDeliveryService binds the gateway endpoints and returns a
// service ready to run.
func NewDeliveryService(cfg *config.Gw, bs BucketService, os ObjectService, ms MultipartService, m *metrics.Metrics, backends []Pinger) (*Service, error) {
	log = mlog.GetPackageLogger("app/gw/delivery")

	if cfg == nil || bs == nil || os == nil || ms == nil || m == nil {
		return nil, errors.New("invalid nil arguments")
	}

	s := &Service{
		bs: bs,
		os: os,
		ms: ms,
	}

	// 1. Bind the client endpoint.
	addr := cfg.ServerAddr + ":" + cfg.ServerPort
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "listen on client address failed")
	}

	// 2. Cap the number of simultaneous client connections.
	if cfg.MaxConns != "" {
		maxConns, err := strconv.Atoi(cfg.MaxConns)
		if err != nil {
			ln.Close()
			return nil, errors.Wrap(err, "invalid max connections")
		}
		if maxConns > 0 {
			ln = netutil.LimitListener(ln, maxConns)
		}
	}

	// 3. Wrap with tls if the gateway serves https.
	if cfg.UseHTTPS == "true" {
		tlsCfg, err := clientTLSConfig(&cfg.Security)
		if err != nil {
			ln.Close()
			return nil, err
		}
		ln = tls.NewListener(ln, tlsCfg)
	}
	s.clientL = ln

	// 4. Create the client http server.
	s.httpSrv = http.Server{
		Handler:        m.Middleware(makeHandler(bs, os, ms)),
		ReadTimeout:    10 * time.Minute,
		WriteTimeout:   10 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	// 5. Bind the admin endpoint, if one is configured.
	if cfg.AdminPort != "" {
		adminL, err := net.Listen("tcp", cfg.ServerAddr+":"+cfg.AdminPort)
		if err != nil {
			ln.Close()
			return nil, errors.Wrap(err, "listen on admin address failed")
		}
		s.adminL = adminL
		s.adminSrv = http.Server{
			Handler:      makeAdminHandler(m, backends),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	return s, nil
}

// Run starts to serve the bound endpoints.
func (s *Service) Run() {
	ctxLogger := mlog.GetMethodLogger(log, "Service.Run")
	ctxLogger.Infof("accept client requests on %s", s.clientL.Addr())

	go s.httpSrv.Serve(s.clientL)

	if s.adminL != nil {
		ctxLogger.Infof("accept admin requests on %s", s.adminL.Addr())
		go s.adminSrv.Serve(s.adminL)
	}
}

// Stop cleans up the services and shut down the server.
func (s *Service) Stop() error {
	if s.adminL != nil {
		if err := s.adminSrv.Close(); err != nil {
			return errors.Wrap(err, "close admin server failed")
		}
	}

	return s.httpSrv.Close()
}

// clientTLSConfig loads the gateway certificate pair from the
// configured certs directory.
func clientTLSConfig(secu *config.Security) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(
		filepath.Join(secu.CertsDir, secu.ServerCrt),
		filepath.Join(secu.CertsDir, secu.ServerKey),
	)
	if err != nil {
		return nil, errors.Wrap(err, "load gateway certificate failed")
	}

	tlsCfg := security.DefaultTLSConfig()
	tlsCfg.Certificates = []tls.Certificate{cert}
	return tlsCfg, nil
}

// Pinger reports whether a gateway backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BucketService is the interface that handles bucket level requests.
type BucketService interface {
	MakeBucketHandler(w http.ResponseWriter, r *http.Request)
	RemoveBucketHandler(w http.ResponseWriter, r *http.Request)
	HeadBucketHandler(w http.ResponseWriter, r *http.Request)
	ListBucketsHandler(w http.ResponseWriter, r *http.Request)
	ListObjectsHandler(w http.ResponseWriter, r *http.Request)
}

// ObjectService is the interface that handles object level requests.
type ObjectService interface {
	PutObjectHandler(w http.ResponseWriter, r *http.Request)
	CopyObjectHandler(w http.ResponseWriter, r *http.Request)
	GetObjectHandler(w http.ResponseWriter, r *http.Request)
	HeadObjectHandler(w http.ResponseWriter, r *http.Request)
	DeleteObjectHandler(w http.ResponseWriter, r *http.Request)
}

// MultipartService is the interface that handles multipart upload
// requests.
type MultipartService interface {
	InitiateUploadHandler(w http.ResponseWriter, r *http.Request)
	PutPartHandler(w http.ResponseWriter, r *http.Request)
	ListPartsHandler(w http.ResponseWriter, r *http.Request)
	CompleteUploadHandler(w http.ResponseWriter, r *http.Request)
	AbortUploadHandler(w http.ResponseWriter, r *http.Request)
}
