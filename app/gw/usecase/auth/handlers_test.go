package auth

import (
	"testing"

	"github.com/gitter-badger/pithos/app/gw/domain/model/cred"
	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository"
	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository/inmem"
)

type fakeCatalog struct {
	secrets map[string]string
	queries int
}

func (c *fakeCatalog) FindSecretKey(accessKey string) (string, error) {
	c.queries++
	sk, ok := c.secrets[accessKey]
	if ok == false {
		return "", repository.ErrNotExist
	}
	return sk, nil
}

func TestGetSecretKey(t *testing.T) {
	catalog := &fakeCatalog{
		secrets: map[string]string{
			"accessKey1": "secretKey1",
		},
	}
	h := NewHandlers(catalog, inmem.NewCredRepository())

	sk, err := h.GetSecretKey(cred.Key("accessKey1"))
	if err != nil {
		t.Fatal(err)
	}
	if sk != cred.Key("secretKey1") {
		t.Errorf("expected secret key %q, got %q", "secretKey1", sk.String())
	}

	if _, err := h.GetSecretKey(cred.Key("unknownKey")); err != ErrNoSuchKey {
		t.Errorf("expected %v, got %v", ErrNoSuchKey, err)
	}
}

func TestGetSecretKeyFromCache(t *testing.T) {
	cache := inmem.NewCredRepository()
	c, err := cred.New(cred.Key("accessKey1"), cred.Key("secretKey1"))
	if err != nil {
		t.Fatal(err)
	}
	cache.Store(c)

	// The catalog knows nothing; a hit proves the cache answered.
	catalog := &fakeCatalog{secrets: map[string]string{}}
	h := NewHandlers(catalog, cache)

	sk, err := h.GetSecretKey(cred.Key("accessKey1"))
	if err != nil {
		t.Fatal(err)
	}
	if sk != cred.Key("secretKey1") {
		t.Errorf("expected secret key %q, got %q", "secretKey1", sk.String())
	}
	if catalog.queries != 0 {
		t.Errorf("expected no catalog query, got %d", catalog.queries)
	}
}
