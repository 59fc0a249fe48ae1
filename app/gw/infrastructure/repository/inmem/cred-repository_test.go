package inmem

import (
	"testing"

	"github.com/gitter-badger/pithos/app/gw/domain/model/cred"
)

func TestCredRepository(t *testing.T) {
	r := NewCredRepository()

	testCases := []struct {
		accessKey cred.Key
		secretKey cred.Key
	}{
		{"accessKey1", "secretKey1"},
		{"accessKey2", "secretKey2"},
	}

	for _, c := range testCases {
		if found, err := r.Find(c.accessKey); err != cred.ErrNoSuchCred {
			t.Errorf("expected to find nothing but found %+v", found)
		}

		saved, err := cred.New(c.accessKey, c.secretKey)
		if err != nil {
			t.Fatal(err)
		}
		r.Store(saved)

		found, err := r.Find(c.accessKey)
		if err != nil {
			t.Errorf("expected to find a credential but got %v", err)
			continue
		}
		if found.SecretKey() != c.secretKey {
			t.Errorf("expected secret key value %+v, but got %+v", c.secretKey, found.SecretKey())
		}
	}
}
