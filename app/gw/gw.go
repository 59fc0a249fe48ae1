package gw

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gitter-badger/pithos/app/gw/delivery"
	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository/inmem"
	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository/mysql"
	"github.com/gitter-badger/pithos/app/gw/usecase/auth"
	"github.com/gitter-badger/pithos/app/gw/usecase/bucket"
	"github.com/gitter-badger/pithos/app/gw/usecase/multipart"
	"github.com/gitter-badger/pithos/app/gw/usecase/object"
	"github.com/gitter-badger/pithos/pkg/blob"
	"github.com/gitter-badger/pithos/pkg/blob/memstore"
	"github.com/gitter-badger/pithos/pkg/blob/mysqlstore"
	"github.com/gitter-badger/pithos/pkg/client/request"
	"github.com/gitter-badger/pithos/pkg/stream"
	"github.com/gitter-badger/pithos/pkg/util/config"
	"github.com/gitter-badger/pithos/pkg/util/metrics"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/gitter-badger/pithos/pkg/util/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger *logrus.Entry

// Bootstrap build up the gateway service.
func Bootstrap(cfg config.Gw) error {
	// Setup logger.
	if err := mlog.Init(cfg.LogLocation); err != nil {
		return errors.Wrap(err, "init log failed")
	}
	logger = mlog.GetPackageLogger("app/gw")

	ctxLogger := mlog.GetFunctionLogger(logger, "Bootstrap")
	ctxLogger.Info("start bootstrap gw ...")

	// Generates gateway ID.
	cfg.ID = uuid.Gen()

	// Setup the catalog store.
	catalog, err := mysql.New(&cfg)
	if err != nil {
		return errors.Wrap(err, "open catalog store failed")
	}

	// Setup the blob store.
	blobStore, err := newBlobStore(&cfg)
	if err != nil {
		return errors.Wrap(err, "open blob store failed")
	}

	// Setup the streaming engine and metrics.
	streamer := stream.New(blobStore)
	m := metrics.New()

	// Setup the secret key cache.
	authCache := inmem.NewCredRepository()

	// Setup request event factory.
	requestEventFactory := request.NewRequestEventFactory()

	// Setup each usecase handlers.
	authHandlers := auth.NewHandlers(mysql.NewAuthRepository(catalog), authCache)
	bucketHandlers := bucket.NewHandlers(&cfg, requestEventFactory, authHandlers, mysql.NewBucketRepository(catalog))
	objectHandlers := object.NewHandlers(&cfg, requestEventFactory, authHandlers, mysql.NewObjectRepository(catalog), blobStore, streamer, m)
	multipartHandlers := multipart.NewHandlers(&cfg, requestEventFactory, authHandlers, mysql.NewMultipartRepository(catalog), blobStore, streamer, m)

	// Setup delivery service.
	ds, err := delivery.NewDeliveryService(&cfg, bucketHandlers, objectHandlers, multipartHandlers, m,
		[]delivery.Pinger{catalog, blobStore})
	if err != nil {
		return errors.Wrap(err, "failed to setup delivery")
	}
	ds.Run()

	ctxLogger.Info("bootstrap gw succeeded")

	// Make channel for Ctrl-C or other terminate signal is received.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt, os.Kill)

	for {
		select {
		case <-sigc:
			ctxLogger.Info("Received stop signal from OS")
			ds.Stop()
			catalog.Close()
			return nil
		}
	}
}

// newBlobStore opens the blob store backend selected by the config.
func newBlobStore(cfg *config.Gw) (blob.Store, error) {
	switch cfg.Store {
	case "mem":
		blockSize, err := strconv.ParseInt(cfg.BlockSize, 10, 64)
		if err != nil || blockSize <= 0 {
			return nil, errors.Errorf("invalid block size: %q", cfg.BlockSize)
		}
		chunkSize, err := strconv.ParseInt(cfg.ChunkSize, 10, 64)
		if err != nil || chunkSize <= 0 {
			return nil, errors.Errorf("invalid chunk size: %q", cfg.ChunkSize)
		}
		return memstore.New(blockSize, chunkSize), nil
	case "mysql":
		return mysqlstore.New(cfg)
	default:
		return nil, errors.Errorf("unknown blob store backend: %q", cfg.Store)
	}
}
