package mysql

import (
	"database/sql"

	"github.com/gitter-badger/pithos/app/gw/infrastructure/repository"
	"github.com/gitter-badger/pithos/app/gw/usecase/object"
)

type objectRepository struct {
	s *Store
}

// NewObjectRepository returns a new instance of a mysql object repository.
func NewObjectRepository(s *Store) object.Repository {
	return &objectRepository{
		s: s,
	}
}

func (r *objectRepository) BucketExists(bucketName string) (bool, error) {
	_, err := bucketID(r.s, bucketName)
	if err == repository.ErrNotExist {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return true, nil
}

func (r *objectRepository) PutObject(bucketName, objectKey string, size int64, etag string) error {
	id, err := bucketID(r.s, bucketName)
	if err != nil {
		return err
	}

	q := `
		INSERT INTO object (ob_bucket, ob_key, ob_size, ob_etag, ob_modified)
		VALUES (?, ?, ?, ?, UTC_TIMESTAMP())
		ON DUPLICATE KEY UPDATE
			ob_size = VALUES(ob_size),
			ob_etag = VALUES(ob_etag),
			ob_modified = VALUES(ob_modified)
	`

	_, err = r.s.Execute(q, id, objectKey, size, etag)
	return classify(err)
}

func (r *objectRepository) FindObject(bucketName, objectKey string) (*object.Info, error) {
	q := `
		SELECT o.ob_key, o.ob_size, o.ob_etag, o.ob_modified
		FROM object o
		JOIN bucket b ON o.ob_bucket = b.bk_id
		WHERE b.bk_name = ? AND o.ob_key = ?
	`

	info := &object.Info{}
	err := r.s.QueryRow(q, bucketName, objectKey).Scan(&info.Key, &info.Size, &info.ETag, &info.Modified)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotExist
	} else if err != nil {
		return nil, err
	}

	return info, nil
}

func (r *objectRepository) RemoveObject(bucketName, objectKey string) error {
	q := `
		DELETE o
		FROM object o
		JOIN bucket b ON o.ob_bucket = b.bk_id
		WHERE b.bk_name = ? AND o.ob_key = ?
	`

	result, err := r.s.Execute(q, bucketName, objectKey)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotExist
	}

	return nil
}
