package auth

import (
	"github.com/gitter-badger/pithos/app/gw/domain/model/cred"
	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository"
	"github.com/gitter-badger/pithos/pkg/util/mlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger *logrus.Entry

// Handlers provides access an authentication domain.
type Handlers interface {
	GetSecretKey(access cred.Key) (secret cred.Key, err error)
}

type handlers struct {
	cache   cred.Repository
	catalog Repository
}

// NewHandlers creates an authentication handlers with necessary dependencies.
func NewHandlers(catalog Repository, cache cred.Repository) Handlers {
	logger = mlog.GetPackageLogger("app/gw/usecase/auth")

	return &handlers{
		cache:   cache,
		catalog: catalog,
	}
}

// GetSecretKey returns a matched secret key with the given access key.
func (h *handlers) GetSecretKey(access cred.Key) (cred.Key, error) {
	c, err := h.cache.Find(access)
	if err == nil {
		return c.SecretKey(), nil
	}

	secret, err := h.findSecretKeyInCatalog(access)
	if err != nil {
		return cred.Key(""), err
	}

	c, err = cred.New(access, secret)
	if err != nil {
		logger.Errorf("failed to cache credential %s: %v", access.String(), err)
	} else {
		// Access to cache needs to hold mutex.
		// Dealing with add cache job to goroutine.
		go h.cache.Store(c)
	}

	return secret, nil
}

func (h *handlers) findSecretKeyInCatalog(access cred.Key) (cred.Key, error) {
	ctxLogger := mlog.GetMethodLogger(logger, "handlers.findSecretKeyInCatalog")

	sk, err := h.catalog.FindSecretKey(access.String())
	if err == repository.ErrNotExist {
		return "", ErrNoSuchKey
	} else if err != nil {
		ctxLogger.Error(errors.Wrap(err, "failed to query secret key"))
		return "", ErrInternal
	}

	return cred.Key(sk), nil
}
